package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/attribution/internal/domain"
)

// EventRepo appends behavioral event rows. The table is append-only; there
// is no update or delete path.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Insert(ctx context.Context, ev *domain.PageviewEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pageview_events
			(id, pageview_id, event_type, target_url, element_id, element_name,
			 element_classes, form_fields_checked, form_fields_filled,
			 form_has_user_data, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, ev.ID, ev.PageviewID, ev.EventType, ev.TargetURL, ev.ElementID, ev.ElementName,
		ev.ElementClasses, ev.FormFieldsChecked, ev.FormFieldsFilled,
		ev.FormHasUserData, ev.OccurredAt, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pageview event: %w", err)
	}
	return nil
}

func (r *EventRepo) ListByPageview(ctx context.Context, pageviewID int64) ([]domain.PageviewEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pageview_id, event_type, target_url, element_id, element_name,
		       element_classes, form_fields_checked, form_fields_filled,
		       form_has_user_data, occurred_at, created_at
		FROM pageview_events
		WHERE pageview_id = $1
		ORDER BY occurred_at ASC
	`, pageviewID)
	if err != nil {
		return nil, fmt.Errorf("list pageview events: %w", err)
	}
	defer rows.Close()

	var out []domain.PageviewEvent
	for rows.Next() {
		var ev domain.PageviewEvent
		if err := rows.Scan(
			&ev.ID, &ev.PageviewID, &ev.EventType, &ev.TargetURL, &ev.ElementID, &ev.ElementName,
			&ev.ElementClasses, &ev.FormFieldsChecked, &ev.FormFieldsFilled,
			&ev.FormHasUserData, &ev.OccurredAt, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pageview event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
