package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"threatwatch/internal/domain"
)

const scanColumns = `id::text, triggered_by, status, new_indicators, critical, high, medium, low, error, started_at, finished_at`

// StartRun records a scan in the running state.
func (db *DB) StartRun(ctx context.Context, trigger string) (string, error) {
	var scanID string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO scans (triggered_by, status)
		VALUES ($1, 'running')
		RETURNING id::text
	`, trigger).Scan(&scanID)
	return scanID, mapErr("start run", err)
}

func (db *DB) CompleteRun(ctx context.Context, scanID string, newIndicators int, counts domain.SeverityCounts) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE scans
		SET status = 'completed', new_indicators = $2, critical = $3, high = $4, medium = $5, low = $6, finished_at = now()
		WHERE id = $1::uuid
	`, scanID, newIndicators, counts.Critical, counts.High, counts.Medium, counts.Low)
	return mapErr("complete run", err)
}

func (db *DB) FailRun(ctx context.Context, scanID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE scans SET status = 'failed', error = $2, finished_at = now() WHERE id = $1::uuid
	`, scanID, reason)
	return mapErr("fail run", err)
}

func (db *DB) GetRun(ctx context.Context, scanID string) (domain.Scan, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1::uuid`, scanID)
	s, err := scanRun(row)
	return s, mapErr("get run", err)
}

func (db *DB) ListRuns(ctx context.Context, limit int) ([]domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx, `SELECT `+scanColumns+` FROM scans ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr("list runs", err)
	}
	defer rows.Close()
	out := []domain.Scan{}
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, mapErr("list runs", err)
		}
		out = append(out, s)
	}
	return out, mapErr("list runs", rows.Err())
}

func scanRun(row pgx.Row) (domain.Scan, error) {
	var s domain.Scan
	var status string
	err := row.Scan(&s.ID, &s.Trigger, &status, &s.NewIndicators,
		&s.Counts.Critical, &s.Counts.High, &s.Counts.Medium, &s.Counts.Low,
		&s.Error, &s.StartedAt, &s.FinishedAt)
	s.Status = domain.ScanStatus(status)
	return s, err
}
