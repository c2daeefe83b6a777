package repo

import (
	"context"

	"github.com/hamed0406/probevisor/internal/domain"
)

// ResultStore keeps the most recent outcome per service.
type ResultStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// Latest returns one result per service, sorted by service name.
	Latest(ctx context.Context) ([]domain.CheckResult, error)
}
