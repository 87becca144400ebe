package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bmbank/bmbank-api/internal/domain"

	"github.com/google/uuid"
)

// RecordEvent appends one audit row. The event id is assigned here so a
// caller never has to invent one.
func (s *Store) RecordEvent(ctx context.Context, e *domain.AuditEvent) error {
	ctx, span := tracer.Start(ctx, "Store.RecordEvent")
	defer span.End()

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}

	return s.write(func() error {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO audit_log (event_id, actor, action, object_name, detail)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			e.EventID, e.Actor, e.Action, e.ObjectName, e.Detail,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		return nil
	})
}

// ListEvents returns the newest events first, optionally filtered by the
// object they touched. limit <= 0 means a default page of 100.
func (s *Store) ListEvents(ctx context.Context, objectName string, limit int) ([]domain.AuditEvent, error) {
	ctx, span := tracer.Start(ctx, "Store.ListEvents")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	var out []domain.AuditEvent
	err := s.read(ctx, func() error {
		var (
			rows *sql.Rows
			err  error
		)
		if objectName != "" {
			rows, err = s.db.QueryContext(ctx,
				`SELECT id, event_id, actor, action, object_name, detail, created_at
				 FROM audit_log
				 WHERE object_name = $1
				 ORDER BY created_at DESC
				 LIMIT $2`,
				objectName, limit,
			)
		} else {
			rows, err = s.db.QueryContext(ctx,
				`SELECT id, event_id, actor, action, object_name, detail, created_at
				 FROM audit_log
				 ORDER BY created_at DESC
				 LIMIT $1`,
				limit,
			)
		}
		if err != nil {
			return fmt.Errorf("query audit events: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var e domain.AuditEvent
			if err := rows.Scan(&e.ID, &e.EventID, &e.Actor, &e.Action,
				&e.ObjectName, &e.Detail, &e.CreatedAt); err != nil {
				return fmt.Errorf("scan audit event: %w", err)
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}
