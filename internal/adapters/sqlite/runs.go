package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"threatwatch/internal/domain"
)

const scanColumns = `id, triggered_by, status, new_indicators, critical, high, medium, low, error, started_at, finished_at`

func (s *Store) StartRun(ctx context.Context, trigger string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO scans (id, triggered_by, status, started_at) VALUES (?, ?, 'running', ?)
	`, id, trigger, toUnix(s.now()))
	if err != nil {
		return "", mapErr("start run", err)
	}
	return id, nil
}

func (s *Store) CompleteRun(ctx context.Context, scanID string, newIndicators int, counts domain.SeverityCounts) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE scans
		SET status = 'completed', new_indicators = ?, critical = ?, high = ?, medium = ?, low = ?, finished_at = ?
		WHERE id = ?
	`, newIndicators, counts.Critical, counts.High, counts.Medium, counts.Low, toUnix(s.now()), scanID)
	return mapErr("complete run", err)
}

func (s *Store) FailRun(ctx context.Context, scanID string, reason string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE scans SET status = 'failed', error = ?, finished_at = ? WHERE id = ?
	`, reason, toUnix(s.now()), scanID)
	return mapErr("fail run", err)
}

func (s *Store) GetRun(ctx context.Context, scanID string) (domain.Scan, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, scanID)
	sc, err := scanRun(row)
	return sc, mapErr("get run", err)
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+scanColumns+` FROM scans ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, mapErr("list runs", err)
	}
	defer rows.Close()
	out := []domain.Scan{}
	for rows.Next() {
		sc, err := scanRun(rows)
		if err != nil {
			return nil, mapErr("list runs", err)
		}
		out = append(out, sc)
	}
	return out, mapErr("list runs", rows.Err())
}

func scanRun(row rowScanner) (domain.Scan, error) {
	var sc domain.Scan
	var status string
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&sc.ID, &sc.Trigger, &status, &sc.NewIndicators,
		&sc.Counts.Critical, &sc.Counts.High, &sc.Counts.Medium, &sc.Counts.Low,
		&sc.Error, &started, &finished); err != nil {
		return sc, err
	}
	sc.Status = domain.ScanStatus(status)
	sc.StartedAt = fromUnix(started)
	if finished.Valid {
		t := fromUnix(finished.Int64)
		sc.FinishedAt = &t
	}
	return sc, nil
}
