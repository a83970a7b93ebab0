package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrQuotaExceeded = errors.New("too many requests, please slow down")

// QuotaError reports which key went over quota. It matches ErrQuotaExceeded
// with errors.Is.
type QuotaError struct {
	Key        string
	Limit      int64
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s over %d requests", ErrQuotaExceeded, e.Key, e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

type Limiter struct {
	store               Store
	disableAddressScope bool
}

type LimiterOption func(*Limiter)

// WithAddressScopeDisabled skips ScopeAddress rules. Identity and list scoped
// rules are still enforced.
func WithAddressScopeDisabled(disabled bool) LimiterOption {
	return func(l *Limiter) { l.disableAddressScope = disabled }
}

func NewLimiter(store Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit counts one request against key and fails with a *QuotaError once the
// count in the current window exceeds maxRequests.
func (l *Limiter) Admit(ctx context.Context, key string, maxRequests int64, window time.Duration) error {
	current, err := l.store.IncrementAndCheck(ctx, key, window)
	if err != nil {
		return fmt.Errorf("quota store: %w", err)
	}

	if current > maxRequests {
		return &QuotaError{Key: key, Limit: maxRequests, RetryAfter: window}
	}
	return nil
}

// AdmitAll applies rules in order and stops at the first failure, so later
// rules are not charged for a rejected request.
func (l *Limiter) AdmitAll(ctx context.Context, subject Subject, rules ...Rule) error {
	for _, rule := range rules {
		if rule.Scope == ScopeAddress && l.disableAddressScope {
			continue
		}
		if err := l.Admit(ctx, rule.Key(subject), rule.MaxRequests, rule.Window); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}
