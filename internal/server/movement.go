package server

import (
	"context"
	"sync"
	"time"
)

// actorTicker advances the simulation by a number of fixed ticks.
type actorTicker interface {
	advance(ctx context.Context, steps, workers int)
}

type tickerFactory func(time.Duration) (<-chan time.Time, func())

type timeSource func() time.Time

// maxCatchUp bounds how many ticks one wake-up may run after a stall.
const maxCatchUp = 5

// movementEngine converts wall-clock time into fixed simulation ticks.
// Elapsed time accumulates; every full tick interval runs one tick, and a
// stall longer than maxCatchUp ticks drops the backlog.
type movementEngine struct {
	target    actorTicker
	tick      time.Duration
	workers   int
	wg        sync.WaitGroup
	newTicker tickerFactory
	now       timeSource
}

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

func newMovementEngine(target actorTicker, tick time.Duration, workers int) *movementEngine {
	if workers <= 0 {
		workers = 1
	}
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	return &movementEngine{
		target:    target,
		tick:      tick,
		workers:   workers,
		newTicker: defaultTickerFactory(),
		now:       time.Now,
	}
}

func (m *movementEngine) Start(ctx context.Context) {
	if m == nil || m.target == nil {
		return
	}
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *movementEngine) run(ctx context.Context) {
	defer m.wg.Done()
	if m.newTicker == nil {
		m.newTicker = defaultTickerFactory()
	}
	if m.now == nil {
		m.now = time.Now
	}

	tickerC, stop := m.newTicker(m.tick)
	defer stop()

	last := m.now()
	var pending time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tickerC:
			if delta := now.Sub(last); delta > 0 {
				pending += delta
			}
			last = now
			steps := int(pending / m.tick)
			if steps == 0 {
				continue
			}
			pending -= time.Duration(steps) * m.tick
			if steps > maxCatchUp {
				steps = maxCatchUp
				pending = 0
			}
			m.target.advance(ctx, steps, m.workers)
		}
	}
}

func (m *movementEngine) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}
