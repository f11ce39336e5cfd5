// Package syncer runs the polling control loop: fetch confirmed
// transactions since the cursor, push them through the reconciliation
// engine, and advance the cursor only when the whole batch landed.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"ticketsync/internal/model"
	"ticketsync/internal/reconcile"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Config holds runtime settings for the scheduler.
type Config struct {
	// AppID is the tracked application. Zero disables the scheduler
	// entirely: Run logs and returns instead of failing, so the surrounding
	// service keeps working without chain sync.
	AppID uint64

	PollInterval time.Duration
	PageLimit    uint32
	MaxRetries   int
	RetryBackoff time.Duration
}

// TransactionSource fetches confirmed transactions for an application, one
// page at a time. The returned token requests the next page; an empty token
// means the window is exhausted.
type TransactionSource interface {
	SearchApplicationTransactions(ctx context.Context, appID, minRound uint64, limit uint32, nextToken string) ([]model.RawTransaction, string, error)
}

// Scheduler drives the sync pipeline. One instance owns the cursor; there is
// no ambient state.
type Scheduler struct {
	cfg     Config
	source  TransactionSource
	engine  *reconcile.Engine
	cursors CursorStore
	logger  *zap.Logger

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
	cursor   uint64
}

// New builds a Scheduler with its dependencies. cursors may be nil, in which
// case the cursor lives only in process memory.
func New(cfg Config, source TransactionSource, engine *reconcile.Engine, cursors CursorStore, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PageLimit == 0 {
		cfg.PageLimit = 50
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Scheduler{
		cfg:     cfg,
		source:  source,
		engine:  engine,
		cursors: cursors,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Disabled reports whether the scheduler is permanently inert for lack of a
// configured application id.
func (s *Scheduler) Disabled() bool { return s.cfg.AppID == 0 }

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cursor returns the highest fully-processed round.
func (s *Scheduler) Cursor() uint64 { return atomic.LoadUint64(&s.cursor) }

// Run executes the polling loop until Stop is called or ctx is cancelled.
// A failed poll cycle is logged and retried on the next interval; it never
// terminates the loop or the process.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Disabled() {
		s.logger.Warn("no application id configured, chain sync disabled")
		return nil
	}
	if s.source == nil {
		return fmt.Errorf("transaction source is nil")
	}
	if s.engine == nil {
		return fmt.Errorf("reconcile engine is nil")
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("scheduler already running")
	}
	defer s.state.Store(int32(StateIdle))

	if s.cursors != nil {
		round, ok, err := s.cursors.Load(ctx)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}
		if ok {
			atomic.StoreUint64(&s.cursor, round)
			s.logger.Info("resume from cursor", zap.Uint64("round", round))
		}
	}

	s.logger.Info("scheduler started",
		zap.Uint64("app_id", s.cfg.AppID),
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Uint32("page_limit", s.cfg.PageLimit),
	)

	for {
		if _, err := s.pollOnce(ctx, 0); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Cursor was not advanced; the same window retries next cycle.
			s.logger.Error("poll cycle failed",
				zap.Error(err),
				zap.Uint64("cursor", s.Cursor()),
			)
		}

		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.stopCh:
			timer.Stop()
			s.logger.Info("scheduler stopped", zap.Uint64("cursor", s.Cursor()))
			return nil
		case <-timer.C:
		}
	}
}

// Stop requests a cooperative shutdown: the loop exits after its current
// iteration. An in-flight fetch or reconciliation is never interrupted.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		close(s.stopCh)
	})
}

// Backfill drains the application's history from round `from` through round
// `to` (0 means until caught up) and returns. It shares pollOnce with the
// daemon loop, so the same idempotence and cursor rules apply, and it holds
// the same Running state so Stop works on it too.
func (s *Scheduler) Backfill(ctx context.Context, from, to uint64) error {
	if s.Disabled() {
		s.logger.Warn("no application id configured, nothing to backfill")
		return nil
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("scheduler already running")
	}
	defer s.state.Store(int32(StateIdle))

	if from > 0 {
		atomic.StoreUint64(&s.cursor, from-1)
	}

	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}

		processed, err := s.pollOnce(ctx, to)
		if err != nil {
			return err
		}
		if processed == 0 {
			return nil
		}
		if to > 0 && s.Cursor() >= to {
			return nil
		}
	}
}

// pollOnce runs one fetch/classify/decode/reconcile cycle. A full page is
// drained within the cycle via the source's pagination token, so a round
// holding more matching calls than one page still completes and the loop
// keeps making progress. The cursor advances to the window's maximum round
// only after every transaction was applied or skipped; any hard failure
// leaves it untouched. throughRound caps the window (0 means unbounded):
// transactions beyond it are neither applied nor counted.
func (s *Scheduler) pollOnce(ctx context.Context, throughRound uint64) (int, error) {
	minRound := uint64(0)
	if cursor := s.Cursor(); cursor > 0 {
		minRound = cursor + 1
	}

	var (
		processed int
		highest   uint64
		token     string
	)
	for {
		txns, next, err := s.fetch(ctx, minRound, token)
		if err != nil {
			return 0, fmt.Errorf("fetch transactions: %w", err)
		}
		fetched := len(txns)
		if throughRound > 0 {
			txns = throughRoundOnly(txns, throughRound)
		}

		if len(txns) > 0 {
			s.logger.Info("processing page",
				zap.Int("transactions", len(txns)),
				zap.Uint64("min_round", minRound),
			)
		}

		for _, txn := range txns {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}

			if err := s.engine.Process(ctx, txn); err != nil {
				return 0, fmt.Errorf("process txn %s: %w", txn.ID, err)
			}
			if txn.ConfirmedRound > highest {
				highest = txn.ConfirmedRound
			}
		}
		processed += len(txns)

		if uint32(fetched) < s.cfg.PageLimit || next == "" {
			break
		}
		if len(txns) < fetched {
			// The cap trimmed this page; everything further is beyond it.
			break
		}
		token = next
	}

	if processed == 0 {
		return 0, nil
	}

	if highest > s.Cursor() {
		atomic.StoreUint64(&s.cursor, highest)
		if s.cursors != nil {
			if err := s.cursors.Save(ctx, highest); err != nil {
				return 0, fmt.Errorf("save cursor: %w", err)
			}
		}
	}
	return processed, nil
}

func throughRoundOnly(txns []model.RawTransaction, throughRound uint64) []model.RawTransaction {
	out := make([]model.RawTransaction, 0, len(txns))
	for _, txn := range txns {
		if txn.ConfirmedRound <= throughRound {
			out = append(out, txn)
		}
	}
	return out
}

func (s *Scheduler) fetch(ctx context.Context, minRound uint64, token string) ([]model.RawTransaction, string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBackoff
	policy.MaxElapsedTime = 0

	var (
		txns []model.RawTransaction
		next string
	)
	operation := func() error {
		var err error
		txns, next, err = s.source.SearchApplicationTransactions(ctx, s.cfg.AppID, minRound, s.cfg.PageLimit, token)
		if err != nil {
			s.logger.Warn("indexer query failed",
				zap.Error(err),
				zap.Uint64("min_round", minRound),
			)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(s.cfg.MaxRetries)), ctx))
	if err != nil {
		return nil, "", err
	}
	return txns, next, nil
}
