package server

import (
	"context"
	"sync"
	"time"
)

// frame is one tick as seen by the world. clock is the simulated time: the
// sum of clamped deltas, which only drifts from wall time across stalls.
type frame struct {
	seq   uint64
	delta time.Duration
	clock time.Time
}

type frameTicker interface {
	tickFrame(ctx context.Context, f frame)
}

type tickerFactory func(time.Duration) (<-chan time.Time, func())

type timeSource func() time.Time

// tickEngine turns wall-clock ticks into frames. Deltas are clamped to the
// nominal tick when the clock stalls or jumps, so a paused process does not
// launch the observer through the floor on resume.
type tickEngine struct {
	target    frameTicker
	tick      time.Duration
	wg        sync.WaitGroup
	newTicker tickerFactory
	now       timeSource

	// owned by the run goroutine once started
	last  time.Time
	clock time.Time
	seq   uint64
}

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

func newTickEngine(target frameTicker, tick time.Duration) *tickEngine {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &tickEngine{
		target:    target,
		tick:      tick,
		newTicker: defaultTickerFactory(),
		now:       time.Now,
	}
}

// begin restarts the frame sequence with both clocks at start.
func (e *tickEngine) begin(start time.Time) {
	e.last = start
	e.clock = start
	e.seq = 0
}

// advance produces the frame for a tick observed at wall time now.
func (e *tickEngine) advance(now time.Time) frame {
	delta := now.Sub(e.last)
	if delta <= 0 || delta > 10*e.tick {
		delta = e.tick
	}
	e.last = now
	e.clock = e.clock.Add(delta)
	e.seq++
	return frame{seq: e.seq, delta: delta, clock: e.clock}
}

func (e *tickEngine) Start(ctx context.Context) {
	if e == nil || e.target == nil {
		return
	}
	if e.newTicker == nil {
		e.newTicker = defaultTickerFactory()
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.begin(e.now())
	e.wg.Add(1)
	go e.run(ctx)
}

func (e *tickEngine) run(ctx context.Context) {
	defer e.wg.Done()
	tickerC, stop := e.newTicker(e.tick)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tickerC:
			e.target.tickFrame(ctx, e.advance(now))
		}
	}
}

func (e *tickEngine) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}
