package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

const indicatorColumns = `id::text, indicator, type, severity, source, description, tags, confidence_score, created_at`

// IndicatorStore

func (db *DB) Exists(ctx context.Context, value string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM iocs WHERE indicator = $1)`, value).Scan(&exists)
	return exists, mapErr("exists", err)
}

func (db *DB) InsertIndicator(ctx context.Context, ind domain.Indicator) (domain.Indicator, error) {
	if ind.Tags == nil {
		ind.Tags = []string{}
	}
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO iocs (indicator, type, severity, source, description, tags, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+indicatorColumns,
		ind.Value, string(ind.Kind), string(ind.Severity), ind.Source, ind.Description, ind.Tags, ind.ConfidenceScore, db.clock())
	out, err := scanIndicator(row)
	return out, mapErr("insert indicator", err)
}

func (db *DB) CountBySeverity(ctx context.Context, since time.Time) (domain.SeverityCounts, error) {
	var counts domain.SeverityCounts
	rows, err := db.Pool.Query(ctx, `
		SELECT severity, count(*) FROM iocs
		WHERE created_at >= $1
		GROUP BY severity
	`, since)
	if err != nil {
		return counts, mapErr("count by severity", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sev string
		var n int64
		if err := rows.Scan(&sev, &n); err != nil {
			return counts, mapErr("count by severity", err)
		}
		counts.AddN(domain.Severity(sev), int(n))
	}
	return counts, mapErr("count by severity", rows.Err())
}

// ThreatRepository

func (db *DB) ListIndicators(ctx context.Context, f ports.IndicatorFilter) ([]domain.Indicator, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT `+indicatorColumns+` FROM iocs
		WHERE ($1 = '' OR severity = $1) AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, string(f.Severity), string(f.Kind), limit)
	if err != nil {
		return nil, mapErr("list indicators", err)
	}
	defer rows.Close()
	out := []domain.Indicator{}
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, mapErr("list indicators", err)
		}
		out = append(out, ind)
	}
	return out, mapErr("list indicators", rows.Err())
}

func (db *DB) GetIndicator(ctx context.Context, value string) (domain.Indicator, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+indicatorColumns+` FROM iocs WHERE indicator = $1`, value)
	ind, err := scanIndicator(row)
	return ind, mapErr("get indicator", err)
}

func scanIndicator(row pgx.Row) (domain.Indicator, error) {
	var ind domain.Indicator
	var kind, sev string
	err := row.Scan(&ind.ID, &ind.Value, &kind, &sev, &ind.Source, &ind.Description, &ind.Tags, &ind.ConfidenceScore, &ind.CreatedAt)
	ind.Kind = domain.Kind(kind)
	ind.Severity = domain.Severity(sev)
	return ind, err
}
