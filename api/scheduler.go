/*
scheduler.go - Automated weekly rollover scheduler

PURPOSE:
  Periodically runs the weekly budget rollover check so a new week starts
  (and is logged) even when nobody opens the widget.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each check is Session.View, which rolls the week over if it has ended
  - A rollover that already happened is a no-op

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRolloverScheduler(session, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - session/session.go: View and the rollover check
  - cmd/bensave/serve.go: Starts the scheduler with the server
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bensave/wallet/session"
)

// RolloverScheduler handles automated weekly rollover.
type RolloverScheduler struct {
	Session       *session.Session
	CheckInterval time.Duration
	Enabled       bool

	log     logrus.FieldLogger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewRolloverScheduler creates a new scheduler.
func NewRolloverScheduler(s *session.Session, log logrus.FieldLogger) *RolloverScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RolloverScheduler{
		Session:       s,
		CheckInterval: time.Hour,
		Enabled:       true,
		log:           log.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.log.Info("Scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker.C, rs.stop)

	rs.log.WithField("interval", rs.CheckInterval.String()).Info("Scheduler started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	ticker, stop := rs.ticker, rs.stop
	rs.ticker, rs.stop = nil, nil
	rs.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	rs.wg.Wait()
	rs.log.Info("Scheduler stopped")
}

func (rs *RolloverScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow()

	for {
		select {
		case <-tick:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one rollover check. It reports whether a new week started.
func (rs *RolloverScheduler) RunNow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	view, err := rs.Session.View(ctx)

	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.mu.Unlock()

	if err != nil {
		rs.log.WithError(err).Error("Rollover check failed")
		return false
	}
	if view.RolledOver {
		rs.log.WithField("budget", view.Budget.Amount.String()).Info("Weekly budget rolled over")
	}
	return view.RolledOver
}

// NextRunTime returns when the next check is due, zero if never run.
func (rs *RolloverScheduler) NextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Time{}
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
