package storage

import (
	"context"
	"fmt"
)

func (s *Store) InsertRequest(ctx context.Context, rec RequestRecord) error {
	q := s.sql.Insert("chat_requests").
		Columns("provider", "model", "success", "error", "latency_ms").
		Values(rec.Provider, rec.Model, rec.Success, rec.Error, rec.LatencyMs)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert request query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) RecentRequests(ctx context.Context, limit int) ([]RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.sql.Select("id", "provider", "model", "success", "error", "latency_ms", "created_at").
		From("chat_requests").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent requests query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("recent requests: %w", err)
	}
	defer rows.Close()

	out := make([]RequestRecord, 0, limit)
	for rows.Next() {
		var rec RequestRecord
		if err := rows.Scan(&rec.ID, &rec.Provider, &rec.Model, &rec.Success, &rec.Error, &rec.LatencyMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request rows: %w", err)
	}
	return out, nil
}

func (s *Store) SummarizeByProvider(ctx context.Context) ([]ProviderSummary, error) {
	q := s.sql.Select(
		"provider",
		"COUNT(*) AS total",
		"SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failed",
	).
		From("chat_requests").
		GroupBy("provider").
		OrderBy("provider ASC")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize requests: %w", err)
	}
	defer rows.Close()

	var out []ProviderSummary
	for rows.Next() {
		var sum ProviderSummary
		if err := rows.Scan(&sum.Provider, &sum.Total, &sum.Failed); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}
	return out, nil
}
