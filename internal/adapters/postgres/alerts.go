package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

const alertColumns = `id::text, title, description, severity, ioc_id::text, status, created_at, updated_at`

func (db *DB) InsertAlert(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	if a.Status == "" {
		a.Status = domain.AlertNew
	}
	now := db.clock()
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO alerts (title, description, severity, ioc_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::uuid, $5, $6, $6)
		RETURNING `+alertColumns,
		a.Title, a.Description, string(a.Severity), a.IndicatorID, string(a.Status), now)
	out, err := scanAlert(row)
	return out, mapErr("insert alert", err)
}

func (db *DB) ListAlerts(ctx context.Context, f ports.AlertFilter) ([]domain.Alert, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR severity = $2)
			AND (NOT $4::boolean OR status <> 'resolved')
		ORDER BY created_at DESC
		LIMIT $3
	`, string(f.Status), string(f.Severity), limit, f.Active)
	if err != nil {
		return nil, mapErr("list alerts", err)
	}
	defer rows.Close()
	out := []domain.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, mapErr("list alerts", err)
		}
		out = append(out, a)
	}
	return out, mapErr("list alerts", rows.Err())
}

func (db *DB) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1::uuid`, id)
	a, err := scanAlert(row)
	return a, mapErr("get alert", err)
}

// UpdateAlertStatus is a compare-and-set on the current status.
func (db *DB) UpdateAlertStatus(ctx context.Context, id string, from, to domain.AlertStatus) (domain.Alert, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE alerts SET status = $3, updated_at = $4
		WHERE id = $1::uuid AND status = $2
		RETURNING `+alertColumns,
		id, string(from), string(to), db.clock())
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// either unknown id or the status moved underneath us
		if _, getErr := db.GetAlert(ctx, id); getErr != nil {
			return domain.Alert{}, getErr
		}
		return domain.Alert{}, domain.ErrInvalidTransition
	}
	return a, mapErr("update alert", err)
}

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	var sev, status string
	err := row.Scan(&a.ID, &a.Title, &a.Description, &sev, &a.IndicatorID, &status, &a.CreatedAt, &a.UpdatedAt)
	a.Severity = domain.Severity(sev)
	a.Status = domain.AlertStatus(status)
	return a, err
}
