// Package context carries request-scoped state for application services.
//
// A RequestContext does two things for one request:
//
// Memoized reads. GetOrFetch (or the typed Fetch) loads a value once and
// serves later lookups from the cache, so the steps of a use case can each
// ask for the same report without hitting storage twice:
//
//	report, err := context.Fetch(rc, "report:"+id, func(ctx context.Context) (*domain.Report, error) {
//	    return s.loadReport(ctx, id)
//	})
//
// Staged writes. Actions are collected with AddAction and run in order by
// Commit. When one fails, the ones that already ran are rolled back in
// reverse order. Creating a report stages the photo upload before the row
// insert, so a failed insert removes the uploaded photo again:
//
//	_ = rc.AddAction(upload)
//	_ = rc.AddAction(save)
//
//	if err := rc.Commit(ctx); err != nil {
//	    return "", err
//	}
package context
