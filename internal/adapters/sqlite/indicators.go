package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

const indicatorColumns = `id, indicator, type, severity, source, description, tags, confidence_score, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) Exists(ctx context.Context, value string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM iocs WHERE indicator = ?)`, value).Scan(&n)
	return n == 1, mapErr("exists", err)
}

func (s *Store) InsertIndicator(ctx context.Context, ind domain.Indicator) (domain.Indicator, error) {
	if ind.Tags == nil {
		ind.Tags = []string{}
	}
	tags, err := json.Marshal(ind.Tags)
	if err != nil {
		return domain.Indicator{}, err
	}
	ind.ID = uuid.NewString()
	ind.CreatedAt = s.now().UTC()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO iocs (`+indicatorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ind.ID, ind.Value, string(ind.Kind), string(ind.Severity), ind.Source, ind.Description, string(tags), ind.ConfidenceScore, toUnix(ind.CreatedAt))
	if err != nil {
		return domain.Indicator{}, mapErr("insert indicator", err)
	}
	return ind, nil
}

func (s *Store) CountBySeverity(ctx context.Context, since time.Time) (domain.SeverityCounts, error) {
	var counts domain.SeverityCounts
	rows, err := s.DB.QueryContext(ctx, `
		SELECT severity, count(*) FROM iocs
		WHERE created_at >= ?
		GROUP BY severity
	`, toUnix(since))
	if err != nil {
		return counts, mapErr("count by severity", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return counts, mapErr("count by severity", err)
		}
		counts.AddN(domain.Severity(sev), n)
	}
	return counts, mapErr("count by severity", rows.Err())
}

func (s *Store) ListIndicators(ctx context.Context, f ports.IndicatorFilter) ([]domain.Indicator, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+indicatorColumns+` FROM iocs
		WHERE (?1 = '' OR severity = ?1) AND (?2 = '' OR type = ?2)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?3
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

func (s *Store) GetIndicator(ctx context.Context, value string) (domain.Indicator, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+indicatorColumns+` FROM iocs WHERE indicator = ?`, value)
	ind, err := scanIndicator(row)
	return ind, mapErr("get indicator", err)
}

func scanIndicator(row rowScanner) (domain.Indicator, error) {
	var ind domain.Indicator
	var kind, sev, tags string
	var created int64
	if err := row.Scan(&ind.ID, &ind.Value, &kind, &sev, &ind.Source, &ind.Description, &tags, &ind.ConfidenceScore, &created); err != nil {
		return ind, err
	}
	ind.Kind = domain.Kind(kind)
	ind.Severity = domain.Severity(sev)
	ind.CreatedAt = fromUnix(created)
	if err := json.Unmarshal([]byte(tags), &ind.Tags); err != nil {
		return ind, err
	}
	return ind, nil
}
