package incident

import "context"

// Repository persists incident records. Append-only from the pipeline's
// perspective; the pipeline never reads back what it wrote.
type Repository interface {
	Save(ctx context.Context, incident *Incident) error
}
