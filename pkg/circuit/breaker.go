// Package circuit implements a small circuit breaker used to guard the
// external geocoder calls. When a provider fails repeatedly the breaker
// opens and calls are short-circuited until a probe succeeds, so a dead
// provider does not burn the pacing budget of every remaining row.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

// State of the breaker. Closed: normal operation; Open: fail fast;
// HalfOpen: one probe allowed through.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// ErrOpen indicates the breaker is open and the call was short-circuited.
var ErrOpen = errors.New("circuit open")

// Config tunes one breaker instance.
type Config struct {
	Name              string
	MaxConsecFailures int           // consecutive failures to open
	OpenFor           time.Duration // how long to stay open before probing
}

type Breaker struct {
	cfg       Config
	mu        sync.Mutex
	st        State
	nextProbe time.Time

	consecFail int

	now func() time.Time // injectable for tests

	log      *logging.Logger
	mState   *metrics.Gauge
	mOpens   *metrics.Counter
	mSuccess *metrics.Counter
	mFailure *metrics.Counter
	mShorted *metrics.Counter
}

func New(cfg Config, log *logging.Logger, reg *metrics.Registry) *Breaker {
	if cfg.MaxConsecFailures <= 0 {
		cfg.MaxConsecFailures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	return &Breaker{
		cfg:      cfg,
		st:       Closed,
		now:      time.Now,
		log:      log.WithComponent("circuit"),
		mState:   reg.Gauge("cb_"+cfg.Name+"_state", "Breaker state (0=closed,1=open,2=half-open)"),
		mOpens:   reg.Counter("cb_"+cfg.Name+"_opens_total", "Breaker open transitions"),
		mSuccess: reg.Counter("cb_"+cfg.Name+"_success_total", "Successful calls through the breaker"),
		mFailure: reg.Counter("cb_"+cfg.Name+"_failure_total", "Failed calls through the breaker"),
		mShorted: reg.Counter("cb_"+cfg.Name+"_short_circuited_total", "Calls rejected while open"),
	}
}

func (b *Breaker) setStateLocked(st State) {
	if b.st == st {
		return
	}
	b.st = st
	switch st {
	case Open:
		b.mOpens.Inc()
		b.mState.Set(1)
	case HalfOpen:
		b.mState.Set(2)
	case Closed:
		b.mState.Set(0)
	}
	b.log.Info("breaker state change",
		logging.String("name", b.cfg.Name),
		logging.Int("state", int(st)))
}

// Do runs op under the breaker. While open it returns ErrOpen without
// invoking op; once the open period elapses a single probe is let through
// and its outcome decides whether the breaker closes again.
//
// Context cancellation is the caller giving up, not the provider failing,
// so context.Canceled and context.DeadlineExceeded pass through without
// touching the failure count. One caller abandoning its rows must not
// open the breaker for everyone else.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.st == Open {
		if b.now().Before(b.nextProbe) {
			b.mu.Unlock()
			b.mShorted.Inc()
			return ErrOpen
		}
		b.setStateLocked(HalfOpen)
	}
	b.mu.Unlock()

	err := op(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.consecFail++
		b.mFailure.Inc()
		if b.st == HalfOpen || b.consecFail >= b.cfg.MaxConsecFailures {
			b.setStateLocked(Open)
			b.nextProbe = b.now().Add(b.cfg.OpenFor)
		}
		return err
	}

	b.consecFail = 0
	b.mSuccess.Inc()
	if b.st != Closed {
		b.setStateLocked(Closed)
	}
	return nil
}
