package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultQueryLimit = 100

// RecentRoutes returns up to limit routes, newest first. An empty actor
// matches every actor.
func (j *Journal) RecentRoutes(ctx context.Context, actor string, limit int) ([]RouteRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := j.db.QueryContext(ctx, `SELECT actor,start_x,start_y,start_z,goal_x,goal_y,goal_z,mode,outcome,cost,steps,expanded,elapsed_us,recorded_at
		FROM routes WHERE (?1 = '' OR actor = ?1) ORDER BY id DESC LIMIT ?2`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var out []RouteRecord
	for rows.Next() {
		var (
			r       RouteRecord
			elapsed int64
			at      string
		)
		if err := rows.Scan(&r.Actor,
			&r.Start[0], &r.Start[1], &r.Start[2],
			&r.Goal[0], &r.Goal[1], &r.Goal[2],
			&r.Mode, &r.Outcome, &r.Cost, &r.Steps, &r.Expanded, &elapsed, &at); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		r.Elapsed = time.Duration(elapsed) * time.Microsecond
		r.At = parseTime(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentEvents returns up to limit executor events, newest first.
func (j *Journal) RecentEvents(ctx context.Context, actor string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := j.db.QueryContext(ctx, `SELECT actor,kind,status,reason,tick,step_index,steps,cost,recorded_at
		FROM events WHERE (?1 = '' OR actor = ?1) ORDER BY id DESC LIMIT ?2`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			e  EventRecord
			at string
		)
		if err := rows.Scan(&e.Actor, &e.Kind, &e.Status, &e.Reason, &e.Tick, &e.Index, &e.Steps, &e.Cost, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// OutcomeCounts tallies recorded routes by outcome.
func (j *Journal) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM routes GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       sql.NullInt64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = int(n.Int64)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
