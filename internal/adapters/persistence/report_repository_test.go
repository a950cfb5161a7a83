package persistence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/platform/database"
)

// newTestDB opens a private in-memory SQLite database. A single connection
// keeps every query on the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:       database.DriverSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, Migrate(context.Background(), db))

	return db
}

type fixedIDs string

func (f fixedIDs) NewID() string { return string(f) }

func ptr[T any](v T) *T { return &v }

func mustReport(t *testing.T, id string, in domain.ReportInput) *domain.Report {
	t.Helper()

	r, err := domain.NewReport(fixedIDs(id), in)
	require.NoError(t, err)

	return r
}

func ramen(rating float64) domain.ReportInput {
	return domain.ReportInput{ItemName: "Ramen", ShopName: "ShopA", Location: "Tokyo", Rating: rating}
}

func TestReportRepository_SaveAndFindByID(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))

	date := time.Date(2024, 5, 17, 19, 30, 0, 0, time.FixedZone("JST", 9*60*60))
	in := domain.ReportInput{
		ItemName:     "Tonkotsu",
		ShopName:     "Ichiran",
		Location:     "Fukuoka",
		Rating:       4.5,
		Spaciousness: ptr(domain.SpaciousnessNarrow),
		Cleanliness:  ptr(domain.CleanlinessClean),
		Relaxation:   ptr(domain.RelaxationBusy),
		ImageURL:     ptr("https://images.example.com/1715900000000-ramen.jpg"),
		Comment:      ptr("rich broth"),
		Date:         &date,
	}

	require.NoError(t, repo.Save(ctx, mustReport(t, "r-1", in)))

	got, found, err := repo.FindByID(ctx, "r-1")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "r-1", got.ID())
	assert.Equal(t, "Tonkotsu", got.ItemName())
	assert.Equal(t, "Ichiran", got.ShopName())
	assert.Equal(t, "Fukuoka", got.Location())
	assert.InDelta(t, 4.5, got.Rating(), 0)

	s, ok := got.Spaciousness()
	assert.True(t, ok)
	assert.Equal(t, domain.SpaciousnessNarrow, s)

	c, ok := got.Cleanliness()
	assert.True(t, ok)
	assert.Equal(t, domain.CleanlinessClean, c)

	r, ok := got.Relaxation()
	assert.True(t, ok)
	assert.Equal(t, domain.RelaxationBusy, r)

	url, _ := got.ImageURL()
	assert.Equal(t, "https://images.example.com/1715900000000-ramen.jpg", url)

	comment, _ := got.Comment()
	assert.Equal(t, "rich broth", comment)

	gotDate, ok := got.Date()
	require.True(t, ok)
	assert.True(t, date.Equal(gotDate))
	assert.Equal(t, time.UTC, gotDate.Location())
}

func TestReportRepository_AbsentOptionalsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))

	require.NoError(t, repo.Save(ctx, mustReport(t, "r-plain", ramen(3))))

	got, found, err := repo.FindByID(ctx, "r-plain")
	require.NoError(t, err)
	require.True(t, found)

	_, ok := got.Spaciousness()
	assert.False(t, ok)
	_, ok = got.Cleanliness()
	assert.False(t, ok)
	_, ok = got.Relaxation()
	assert.False(t, ok)
	_, ok = got.ImageURL()
	assert.False(t, ok)
	_, ok = got.Comment()
	assert.False(t, ok)
	_, ok = got.Date()
	assert.False(t, ok)
}

func TestReportRepository_DateIsNormalizedText(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReportRepository(db)

	date := time.Date(2024, 1, 2, 9, 0, 0, 123456789, time.FixedZone("CET", 3600))
	in := ramen(2)
	in.Date = &date

	require.NoError(t, repo.Save(ctx, mustReport(t, "r-date", in)))

	var stored string
	require.NoError(t, db.Raw("SELECT date FROM reports WHERE id = ?", "r-date").Scan(&stored).Error)
	assert.Equal(t, "2024-01-02T08:00:00.123Z", stored)
}

func TestReportRepository_FindByIDAbsent(t *testing.T) {
	repo := NewReportRepository(newTestDB(t))

	got, found, err := repo.FindByID(context.Background(), "does-not-exist")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestReportRepository_FindAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReportRepository(db)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []reportRow{
		{ID: "old", ItemName: "Udon", ShopName: "S", Location: "L", Rating: 3, CreatedAt: base},
		{ID: "a-tie", ItemName: "Soba", ShopName: "S", Location: "L", Rating: 3, CreatedAt: base.Add(time.Hour)},
		{ID: "b-tie", ItemName: "Soba", ShopName: "S", Location: "L", Rating: 3, CreatedAt: base.Add(time.Hour)},
		{ID: "newest", ItemName: "Ramen", ShopName: "S", Location: "L", Rating: 5, CreatedAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, db.Create(&rows).Error)

	reports, err := repo.FindAll(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID())
	}

	assert.Equal(t, []string{"newest", "b-tie", "a-tie", "old"}, ids)
}

func TestReportRepository_FindAllEmpty(t *testing.T) {
	reports, err := NewReportRepository(newTestDB(t)).FindAll(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}

func TestReportRepository_CoercesOutOfDomainCodes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReportRepository(db)

	require.NoError(t, db.Create(&reportRow{
		ID:           "legacy",
		ItemName:     "Gyoza",
		ShopName:     "S",
		Location:     "L",
		Rating:       4,
		Spaciousness: ptr(3.0),
		Cleanliness:  ptr(1.5),
		Relaxation:   ptr(2.0),
		Date:         ptr("not a date"),
	}).Error)

	got, found, err := repo.FindByID(ctx, "legacy")
	require.NoError(t, err)
	require.True(t, found)

	_, ok := got.Spaciousness()
	assert.False(t, ok, "code 3 is outside {1,2}")

	_, ok = got.Cleanliness()
	assert.False(t, ok, "non-integral code")

	relaxation, ok := got.Relaxation()
	assert.True(t, ok)
	assert.Equal(t, domain.RelaxationBusy, relaxation)

	_, ok = got.Date()
	assert.False(t, ok, "unparseable date reads as absent")
}

func TestReportRepository_ReadsLegacyDateFormats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReportRepository(db)

	require.NoError(t, db.Create(&[]reportRow{
		{ID: "sqlite-ts", ItemName: "I", ShopName: "S", Location: "L", Rating: 1, Date: ptr("2024-05-17 10:20:30")},
		{ID: "bare", ItemName: "I", ShopName: "S", Location: "L", Rating: 1, Date: ptr("2024-05-17")},
	}).Error)

	got, _, err := repo.FindByID(ctx, "sqlite-ts")
	require.NoError(t, err)

	d, ok := got.Date()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 17, 10, 20, 30, 0, time.UTC), d)

	got, _, err = repo.FindByID(ctx, "bare")
	require.NoError(t, err)

	d, ok = got.Date()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), d)
}

func TestReportRepository_CorruptedRatingFailsRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReportRepository(db)

	require.NoError(t, db.Create(&reportRow{ID: "bad", ItemName: "I", ShopName: "S", Location: "L", Rating: 1.3}).Error)

	_, found, err := repo.FindByID(ctx, "bad")
	require.Error(t, err)
	assert.False(t, found)
	assert.True(t, domain.IsValidation(err))

	_, err = repo.FindAll(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestReportRepository_SaveDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))

	require.NoError(t, repo.Save(ctx, mustReport(t, "dup", ramen(3))))

	err := repo.Save(ctx, mustReport(t, "dup", ramen(4)))

	require.Error(t, err)
	assert.True(t, domain.IsStorage(err))
	assert.True(t, domain.IsConflict(err))

	got, _, err := repo.FindByID(ctx, "dup")
	require.NoError(t, err)
	assert.InDelta(t, 3, got.Rating(), 0, "first row is untouched")
}

func TestReportRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))

	require.NoError(t, repo.Save(ctx, mustReport(t, "gone", ramen(3))))

	removed, err := repo.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := repo.FindByID(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, found)

	removed, err = repo.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReportRepository_Count(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.Save(ctx, mustReport(t, "one", ramen(3))))
	require.NoError(t, repo.Save(ctx, mustReport(t, "two", ramen(3.5))))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReportRepository_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReportRepository(db)
	require.NoError(t, database.Close(db))

	_, err := repo.FindAll(ctx)
	assert.True(t, domain.IsStorage(err))

	_, _, err = repo.FindByID(ctx, "x")
	assert.True(t, domain.IsStorage(err))

	_, err = repo.Delete(ctx, "x")
	assert.True(t, domain.IsStorage(err))

	err = repo.Save(ctx, mustReport(t, "x", ramen(1)))
	assert.True(t, domain.IsStorage(err))
	assert.False(t, domain.IsConflict(err))
}
