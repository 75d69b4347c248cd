package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the user record does not exist.
	ErrNotFound = errors.New("streak: user not found")
	// ErrWriteFailed is returned when the streak update did not commit.
	ErrWriteFailed = errors.New("streak: write failed")
	// ErrConflict is returned when another writer advanced the streak between
	// load and save. Errors carrying it also match ErrWriteFailed.
	ErrConflict = errors.New("streak: concurrent update")
)

// Store persists streak state keyed by username.
type Store interface {
	// LoadStreak returns ErrNotFound when the user does not exist.
	LoadStreak(ctx context.Context, username string) (State, error)
	// SaveStreak writes next only if the stored latest update still equals
	// prev.LatestUpdate, and returns ErrConflict otherwise.
	SaveStreak(ctx context.Context, prev, next State) error
	// ResetStale sets streaks_count to 1 for every user whose latest update is
	// missing, before from, or at/after until. It returns the rows changed.
	ResetStale(ctx context.Context, from, until time.Time) (int64, error)
}

// Result is the outcome of recording a post event.
type Result struct {
	State  State  `json:"state"`
	Status Status `json:"status"`
}

// Engine advances streaks against a Store.
type Engine struct {
	store  Store
	rules  Rules
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules overrides DefaultRules.
func WithRules(r Rules) Option { return func(e *Engine) { e.rules = r } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		rules:  DefaultRules,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Record applies one qualifying post event for username. Nothing is
// persisted on StatusAlreadyDoneToday.
func (e *Engine) Record(ctx context.Context, username string) (Result, error) {
	prev, err := e.store.LoadStreak(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, ErrNotFound
		}
		return Result{}, fmt.Errorf("load streak for %s: %w", username, err)
	}

	// Millisecond precision matches what the database keeps, so the stored
	// value can be compared exactly on the next save.
	now := e.now().UTC().Truncate(time.Millisecond)
	next, status := e.rules.Advance(prev, now)
	if status == StatusAlreadyDoneToday {
		return Result{State: prev, Status: status}, nil
	}

	if err := e.store.SaveStreak(ctx, prev, next); err != nil {
		if errors.Is(err, ErrConflict) {
			e.logger.Warn("streak save lost race", zap.String("username", username))
			return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, ErrConflict)
		}
		e.logger.Error("streak save failed", zap.String("username", username), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	e.logger.Debug("streak advanced",
		zap.String("username", username),
		zap.Int("streaks_count", next.StreaksCount),
		zap.Int("rewards", len(next.Rewards)),
	)
	return Result{State: next, Status: status}, nil
}

// ResetInactive forces streaks_count to 1 for every user whose latest update
// falls on neither today nor yesterday. Rewards and latest_update are left
// alone, and running it twice changes nothing the second time.
func (e *Engine) ResetInactive(ctx context.Context) (int64, error) {
	today := dayStart(e.now())
	from := today.AddDate(0, 0, -1)
	until := today.AddDate(0, 0, 1)

	n, err := e.store.ResetStale(ctx, from, until)
	if err != nil {
		return 0, fmt.Errorf("reset inactive streaks: %w", err)
	}
	e.logger.Info("inactive streaks reset", zap.Int64("users", n))
	return n, nil
}
