package repository

import (
	"context"
	"fmt"
	"sort"

	"sharedlist-sync-server/internal/domain"
)

type statsRepository struct {
	db DBTX
}

func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Usage(ctx context.Context) (*domain.UsageStats, error) {
	lists, err := r.countByDay(ctx, "lists")
	if err != nil {
		return nil, err
	}
	items, err := r.countByDay(ctx, "list_items")
	if err != nil {
		return nil, err
	}

	stats := &domain.UsageStats{}
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM lists`).Scan(&stats.TotalLists); err != nil {
		return nil, fmt.Errorf("failed to count lists: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM list_items`).Scan(&stats.TotalItems); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	stats.Points = mergeUsage(lists, items)
	return stats, nil
}

type dayCount struct {
	day   string
	count int64
}

// table is one of the two fixed table names above, never user input.
func (r *statsRepository) countByDay(ctx context.Context, table string) ([]dayCount, error) {
	query := `SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day, count(*)
		FROM ` + table + `
		GROUP BY day
		ORDER BY day`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s per day: %w", table, err)
	}
	defer rows.Close()

	var out []dayCount
	for rows.Next() {
		var dc dayCount
		if err := rows.Scan(&dc.day, &dc.count); err != nil {
			return nil, fmt.Errorf("failed to scan %s per day: %w", table, err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count %s per day: %w", table, err)
	}

	return out, nil
}

// mergeUsage joins per-day list and item counts into points sorted by day.
func mergeUsage(lists, items []dayCount) []domain.UsagePoint {
	byDay := make(map[string]*domain.UsagePoint)
	for _, l := range lists {
		byDay[l.day] = &domain.UsagePoint{Day: l.day, ListsCreated: l.count}
	}
	for _, it := range items {
		p, ok := byDay[it.day]
		if !ok {
			p = &domain.UsagePoint{Day: it.day}
			byDay[it.day] = p
		}
		p.ItemsCreated = it.count
	}

	points := make([]domain.UsagePoint, 0, len(byDay))
	for _, p := range byDay {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points
}
