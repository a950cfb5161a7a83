package context

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gourmetlog/report-service/internal/platform/logging"
)

// Action is one staged write.
type Action interface {
	// Execute performs the write.
	Execute(ctx context.Context) error

	// Rollback undoes a write that Execute completed.
	Rollback(ctx context.Context) error

	// Description names the action in logs and errors.
	Description() string
}

// AddAction stages an action. It fails once the context has been committed.
func (rc *RequestContext) AddAction(action Action) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.committed {
		return ErrAlreadyCommitted
	}

	rc.actions = append(rc.actions, action)

	return nil
}

// Commit runs the staged actions in order. When one fails, the actions that
// already ran are rolled back in reverse order and the failure is returned.
// Rollback failures are logged; they do not replace the original error.
func (rc *RequestContext) Commit(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.committed {
		return ErrAlreadyCommitted
	}

	for i, action := range rc.actions {
		if err := action.Execute(ctx); err != nil {
			rollback(ctx, rc.actions[:i])
			return fmt.Errorf("action %q failed: %w", action.Description(), err)
		}
	}

	rc.committed = true

	return nil
}

func rollback(ctx context.Context, executed []Action) {
	logger := logging.FromContext(ctx)

	for i := len(executed) - 1; i >= 0; i-- {
		if err := executed[i].Rollback(ctx); err != nil {
			logger.ErrorContext(ctx, "rollback failed",
				slog.String("action", executed[i].Description()),
				slog.Any("error", err),
			)
		}
	}
}

// Committed reports whether Commit has succeeded.
func (rc *RequestContext) Committed() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.committed
}

// Actions returns a copy of the staged actions.
func (rc *RequestContext) Actions() []Action {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	result := make([]Action, len(rc.actions))
	copy(result, rc.actions)

	return result
}
