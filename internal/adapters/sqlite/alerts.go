package sqlite

import (
	"context"

	"github.com/google/uuid"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

const alertColumns = `id, title, description, severity, ioc_id, status, created_at, updated_at`

func (s *Store) InsertAlert(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	if a.Status == "" {
		a.Status = domain.AlertNew
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.now().UTC()
	a.UpdatedAt = a.CreatedAt
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, a.Description, string(a.Severity), a.IndicatorID, string(a.Status), toUnix(a.CreatedAt), toUnix(a.UpdatedAt))
	if err != nil {
		return domain.Alert{}, mapErr("insert alert", err)
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, f ports.AlertFilter) ([]domain.Alert, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE (?1 = '' OR status = ?1) AND (?2 = '' OR severity = ?2)
			AND (?4 = 0 OR status <> 'resolved')
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?3
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

func (s *Store) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	return a, mapErr("get alert", err)
}

func (s *Store) UpdateAlertStatus(ctx context.Context, id string, from, to domain.AlertStatus) (domain.Alert, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE alerts SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, string(to), toUnix(s.now()), id, string(from))
	if err != nil {
		return domain.Alert{}, mapErr("update alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Alert{}, mapErr("update alert", err)
	}
	if n == 0 {
		if _, err := s.GetAlert(ctx, id); err != nil {
			return domain.Alert{}, err
		}
		return domain.Alert{}, domain.ErrInvalidTransition
	}
	return s.GetAlert(ctx, id)
}

func scanAlert(row rowScanner) (domain.Alert, error) {
	var a domain.Alert
	var sev, status string
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &sev, &a.IndicatorID, &status, &created, &updated); err != nil {
		return a, err
	}
	a.Severity = domain.Severity(sev)
	a.Status = domain.AlertStatus(status)
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updated)
	return a, nil
}
