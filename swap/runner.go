package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/ledgerevents"
)

const (
	DefaultClockRecheck  = 10 * time.Second
	DefaultRetryInterval = 5 * time.Second
)

type RunnerConfig struct {
	Watchers *ledgerevents.Set
	Store    Store
	Policy   Policy

	// ClockRecheck is how often an expiry is checked again while the ledger
	// clock lags behind the local one.
	ClockRecheck  time.Duration
	RetryInterval time.Duration

	// OnChange is called after every persisted change.
	OnChange func(s *Swap, changes []Event)
}

type command func(s *Swap) error

type observation struct {
	key    string
	id     uint64
	closed bool
	cmd    command
}

type subscription struct {
	id     uint64
	cancel context.CancelFunc
}

// Runner drives one accepted swap: it keeps the ledger subscriptions its
// legs need, applies observations strictly one at a time and persists each
// change before looking at the next observation.
type Runner struct {
	cfg  RunnerConfig
	swap *Swap
	log  *logger.Entry

	obs       chan observation
	abandon   chan chan error
	done      chan struct{}
	subs      map[string]*subscription
	nextSubID uint64
	startedAt time.Time
	lastCheck map[LegID]time.Time
}

func NewRunner(s *Swap, cfg RunnerConfig) (*Runner, error) {
	if s.Phase != PhaseAccepted {
		return nil, ErrInvalidPhase
	}
	if cfg.Watchers == nil || cfg.Store == nil {
		return nil, errors.New("runner needs watchers and a store")
	}
	if cfg.ClockRecheck <= 0 {
		cfg.ClockRecheck = DefaultClockRecheck
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Runner{
		cfg:       cfg,
		swap:      s,
		log:       logger.WithFields(logger.Fields{"swap": s.ID, "role": s.Role}),
		obs:       make(chan observation, 16),
		abandon:   make(chan chan error),
		done:      make(chan struct{}),
		subs:      make(map[string]*subscription),
		lastCheck: make(map[LegID]time.Time),
	}, nil
}

// Run returns nil once the swap is final, ErrAbandoned after a successful
// Abandon, or the context error. It may only be called once.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("swap runner started")
	defer r.log.Info("swap runner stopped")
	defer close(r.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.startedAt = time.Now()
	var retry <-chan time.Time

	for {
		if r.swap.IsFinal() {
			r.log.WithField("status", r.swap.Status()).Info("swap is final")
			return nil
		}

		if retry == nil {
			if err := r.syncSubscriptions(ctx); err != nil {
				r.log.WithError(err).Warn("failed to subscribe, retrying")
				retry = time.After(r.cfg.RetryInterval)
			}
		}

		expiryTimer := r.timer(r.nextExpiryCheck(time.Now()))
		livenessTimer := r.timer(r.nextLivenessCheck())

		select {
		case <-ctx.Done():
			expiryTimer.Stop()
			livenessTimer.Stop()
			return ctx.Err()

		case o := <-r.obs:
			sub, ok := r.subs[o.key]
			if !ok || sub.id != o.id {
				break
			}
			if o.closed {
				r.log.WithField("subscription", o.key).Debug("subscription closed, renewing")
				sub.cancel()
				delete(r.subs, o.key)
				retry = time.After(r.cfg.RetryInterval)
				break
			}
			if err := r.execute(ctx, o.cmd); err != nil {
				return err
			}

		case reply := <-r.abandon:
			err := r.swap.CanAbandon()
			reply <- err
			if err == nil {
				expiryTimer.Stop()
				livenessTimer.Stop()
				r.log.Info("swap abandoned")
				return ErrAbandoned
			}

		case now := <-expiryTimer.C:
			if err := r.checkExpiries(ctx, now); err != nil {
				return err
			}

		case now := <-livenessTimer.C:
			if err := r.reportStalled(ctx, now); err != nil {
				return err
			}

		case <-retry:
			retry = nil
		}

		expiryTimer.Stop()
		livenessTimer.Stop()
	}
}

// Abandon stops the runner unless the swap holds funds. The check runs on
// the runner goroutine, between two observations.
func (r *Runner) Abandon(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case r.abandon <- reply:
		return <-reply
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute applies cmd and persists what it raised. A rejected observation
// is logged and skipped; only a failing store stops the runner.
func (r *Runner) execute(ctx context.Context, cmd command) error {
	if err := cmd(r.swap); err != nil {
		switch {
		case errors.Is(err, ErrSecretMismatch), errors.Is(err, ErrEarlyRefund), errors.Is(err, ErrConflictingOutcome):
			r.log.WithError(err).Error("ledger reported a protocol violation")
		default:
			r.log.WithError(err).Warn("observation rejected")
		}
	}

	changes := r.swap.Changes()
	if len(changes) == 0 {
		return nil
	}
	if err := r.cfg.Store.Save(ctx, r.swap); err != nil {
		return fmt.Errorf("failed to persist swap %s: %w", r.swap.ID, err)
	}
	for _, ev := range changes {
		r.log.WithField("event", ev.Type()).Debug("swap event persisted")
	}
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(r.swap, changes)
	}
	return nil
}

// timer returns a timer that never fires when ok is false.
func (r *Runner) timer(d time.Duration, ok bool) *time.Timer {
	if !ok {
		t := time.NewTimer(time.Hour)
		t.Stop()
		return t
	}
	if d < 0 {
		d = 0
	}
	return time.NewTimer(d)
}

func expiring(l *Leg) bool {
	return l.State == StateCreated || l.State == StateDeployed || l.State == StateFunded
}

func (r *Runner) nextExpiryCheck(now time.Time) (time.Duration, bool) {
	var (
		next  time.Duration
		found bool
	)
	for _, l := range r.swap.Legs() {
		if !expiring(l) {
			continue
		}
		at := l.Params.Expiry()
		if last, ok := r.lastCheck[l.ID]; ok && !last.Before(at) {
			at = last.Add(r.cfg.ClockRecheck)
		}
		d := at.Sub(now)
		if !found || d < next {
			next, found = d, true
		}
	}
	return next, found
}

// checkExpiries asks the ledger clock; the local clock only schedules.
func (r *Runner) checkExpiries(ctx context.Context, now time.Time) error {
	for _, l := range r.swap.Legs() {
		if !expiring(l) || now.Before(l.Params.Expiry()) {
			continue
		}
		r.lastCheck[l.ID] = now

		w, err := r.cfg.Watchers.For(l.Params.Ledger())
		if err != nil {
			return err
		}
		ledgerTime, err := w.LedgerTime(ctx)
		if err != nil {
			r.log.WithError(err).WithField("leg", l.ID).Warn("failed to read ledger time")
			continue
		}
		id := l.ID
		if err := r.execute(ctx, func(s *Swap) error { return s.ObserveExpired(id, ledgerTime) }); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) nextLivenessCheck() (time.Duration, bool) {
	if r.cfg.Policy.LivenessBound <= 0 {
		return 0, false
	}
	for _, l := range r.swap.Legs() {
		if !l.Stalled && (l.State == StateCreated || l.State == StateDeployed) {
			return time.Until(r.waitingSince().Add(r.cfg.Policy.LivenessBound)), true
		}
	}
	return 0, false
}

// waitingSince is the acceptance time, or the runner start for swaps whose
// acceptance time was never recorded.
func (r *Runner) waitingSince() time.Time {
	if !r.swap.AcceptedAt.IsZero() {
		return r.swap.AcceptedAt
	}
	return r.startedAt
}

func (r *Runner) reportStalled(ctx context.Context, now time.Time) error {
	since := r.waitingSince()
	for _, l := range r.swap.Legs() {
		id := l.ID
		if err := r.execute(ctx, func(s *Swap) error { return s.ReportStalled(id, since) }); err != nil {
			return err
		}
		if l.Stalled {
			r.log.WithFields(logger.Fields{"leg": id, "waiting": now.Sub(since)}).Warn("leg not funded within the liveness bound")
		}
	}
	return nil
}

// syncSubscriptions opens what the legs need now and releases the rest.
func (r *Runner) syncSubscriptions(ctx context.Context) error {
	want := make(map[string]bool)
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, l := range r.swap.Legs() {
		if l.IsFinal() {
			continue
		}
		w, err := r.cfg.Watchers.For(l.Params.Ledger())
		if err != nil {
			keep(err)
			continue
		}

		key := fmt.Sprintf("%s/funded", l.ID)
		want[key] = true
		if _, ok := r.subs[key]; !ok {
			keep(r.subscribeFunded(ctx, w, l, key))
		}

		if l.Funding == nil {
			continue
		}
		key = fmt.Sprintf("%s/redeemed/%s", l.ID, l.Funding.Location)
		want[key] = true
		if _, ok := r.subs[key]; !ok {
			keep(r.subscribeRedeemed(ctx, w, l, key))
		}
		key = fmt.Sprintf("%s/refunded/%s", l.ID, l.Funding.Location)
		want[key] = true
		if _, ok := r.subs[key]; !ok {
			keep(r.subscribeRefunded(ctx, w, l, key))
		}
	}

	for key, sub := range r.subs {
		if !want[key] {
			sub.cancel()
			delete(r.subs, key)
		}
	}
	return firstErr
}

func (r *Runner) track(key string, cancel context.CancelFunc) uint64 {
	r.nextSubID++
	r.subs[key] = &subscription{id: r.nextSubID, cancel: cancel}
	return r.nextSubID
}

func (r *Runner) subscribeFunded(ctx context.Context, w ledgerevents.Watcher, l *Leg, key string) error {
	subCtx, cancel := context.WithCancel(ctx)
	ch, err := w.SubscribeFunded(subCtx, l.Params)
	if err != nil {
		cancel()
		return err
	}
	id, policy := l.ID, r.cfg.Policy
	go forward(subCtx, key, r.track(key, cancel), ch, r.obs, func(f ledgerevents.Funded) command {
		if f.Retracted {
			return func(s *Swap) error { return s.ObserveFundingRetracted(id, f.Funding.Location, f.TxID) }
		}
		return func(s *Swap) error { return s.ObserveFunded(id, f.Funding, f.TxID, policy) }
	})
	return nil
}

func (r *Runner) subscribeRedeemed(ctx context.Context, w ledgerevents.Watcher, l *Leg, key string) error {
	subCtx, cancel := context.WithCancel(ctx)
	ch, err := w.SubscribeRedeemed(subCtx, l.Params, l.Funding.Location)
	if err != nil {
		cancel()
		return err
	}
	id := l.ID
	go forward(subCtx, key, r.track(key, cancel), ch, r.obs, func(ev ledgerevents.Redeemed) command {
		return func(s *Swap) error { return s.ObserveRedeemed(id, ev.Secret, ev.TxID) }
	})
	return nil
}

func (r *Runner) subscribeRefunded(ctx context.Context, w ledgerevents.Watcher, l *Leg, key string) error {
	subCtx, cancel := context.WithCancel(ctx)
	ch, err := w.SubscribeRefunded(subCtx, l.Params, l.Funding.Location)
	if err != nil {
		cancel()
		return err
	}
	id := l.ID
	go forward(subCtx, key, r.track(key, cancel), ch, r.obs, func(ev ledgerevents.Refunded) command {
		return func(s *Swap) error { return s.ObserveRefunded(id, ev.TxID, ev.BlockTime) }
	})
	return nil
}

// forward turns one subscription stream into runner observations and
// reports when the stream closes.
func forward[T any](ctx context.Context, key string, id uint64, in <-chan T, out chan<- observation, toCmd func(T) command) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			o := observation{key: key, id: id}
			if ok {
				o.cmd = toCmd(v)
			} else {
				o.closed = true
			}
			select {
			case out <- o:
			case <-ctx.Done():
				return
			}
			if !ok {
				return
			}
		}
	}
}
