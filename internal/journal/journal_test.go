package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nav", "journal.sqlite")
	j, err := Open(path, 16, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return j, path
}

func TestJournalPersistsRoutesAcrossReopen(t *testing.T) {
	j, path := openTemp(t)
	j.RecordRoute(RouteRecord{
		Actor:    "scout",
		Start:    [3]int{0, 64, 0},
		Goal:     [3]int{10, 65, -3},
		Mode:     "ground",
		Outcome:  "found",
		Cost:     12.5,
		Steps:    11,
		Expanded: 240,
		Elapsed:  3 * time.Millisecond,
	})
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var (
		actor, outcome string
		goalY, steps   int
		elapsed        int64
	)
	row := db.QueryRow(`SELECT actor, outcome, goal_y, steps, elapsed_us FROM routes`)
	if err := row.Scan(&actor, &outcome, &goalY, &steps, &elapsed); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if actor != "scout" || outcome != "found" || goalY != 65 || steps != 11 || elapsed != 3000 {
		t.Fatalf("unexpected row: %s %s %d %d %d", actor, outcome, goalY, steps, elapsed)
	}
}

func TestJournalRecentEventsFiltersByActor(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()

	for i, actor := range []string{"a", "b", "a"} {
		j.RecordEvent(EventRecord{Actor: actor, Kind: "advanced", Status: "executing", Tick: int64(i), Index: i})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	events, err := j.RecentEvents(ctx, "a", 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for actor a, got %d", len(events))
	}
	if events[0].Tick != 2 || events[1].Tick != 0 {
		t.Fatalf("expected newest first, got ticks %d, %d", events[0].Tick, events[1].Tick)
	}
	if events[0].At.IsZero() {
		t.Fatalf("expected recorded timestamp")
	}

	all, err := j.RecentEvents(ctx, "", 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
}

func TestJournalOutcomeCounts(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()

	for _, outcome := range []string{"found", "found", "unreachable", "timeout"} {
		j.RecordRoute(RouteRecord{Actor: "x", Outcome: outcome})
	}
	ctx := context.Background()
	if err := j.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	counts, err := j.OutcomeCounts(ctx)
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	if counts["found"] != 2 || counts["unreachable"] != 1 || counts["timeout"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestJournalIgnoresWritesAfterClose(t *testing.T) {
	j, _ := openTemp(t)
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	j.RecordRoute(RouteRecord{Actor: "late"})
	j.RecordEvent(EventRecord{Actor: "late"})
	if err := j.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := j.Sync(context.Background()); err != nil {
		t.Fatalf("Sync after close: %v", err)
	}
}

func TestJournalCloseDuringConcurrentWrites(t *testing.T) {
	j, _ := openTemp(t)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 500; i++ {
				j.RecordRoute(RouteRecord{Actor: "writer", Steps: i})
				j.RecordEvent(EventRecord{Actor: "writer", Tick: int64(i)})
				if i%100 == 0 {
					ctx, cancel := context.WithTimeout(context.Background(), time.Second)
					_ = j.Sync(ctx)
					cancel()
				}
			}
		}()
	}
	close(start)
	time.Sleep(time.Millisecond)
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	j.RecordRoute(RouteRecord{})
	j.RecordEvent(EventRecord{})
	if j.Dropped() != 0 {
		t.Fatalf("nil journal must not count drops")
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close on nil journal: %v", err)
	}
}
