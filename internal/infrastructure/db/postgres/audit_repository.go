package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// AuditRepository implements ports.AuditRepository with Postgres.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_events (type, username, outcome, reason, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		string(event.Type), event.Username, event.Outcome, event.Reason, event.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
