/*-------------------------------------------------------------------------
 *
 * LATS Admin - Destination Retry
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"lats-admin/internal/config"
	"lats-admin/internal/logging"
	"lats-admin/internal/records"
)

// RetryPolicy bounds the retries against an unreachable destination
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryPolicyFromConfig converts the retry section
func RetryPolicyFromConfig(r config.RetryConfig) RetryPolicy {
	return RetryPolicy(r)
}

// IsUnreachable reports whether err means the destination could not be
// reached, as opposed to the destination rejecting the request
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDestinationUnreachable) {
		return true
	}
	// A caller's deadline or cancellation is not an outage
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, 57P01-57P03 are server shutdown
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:4] == "57P0")
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// Retrying retries unreachable errors with exponential backoff. Other
// errors are returned at once.
type Retrying struct {
	Store
	policy RetryPolicy
}

// WithRetry wraps a store with the retry policy. Optional capabilities of
// the wrapped store stay reachable through Unwrap.
func WithRetry(s Store, policy RetryPolicy) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{Store: s, policy: policy}
}

// Unwrap returns the wrapped store
func (r *Retrying) Unwrap() Store { return r.Store }

func (r *Retrying) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}

// do runs op until it succeeds, fails permanently or attempts run out
func (r *Retrying) do(ctx context.Context, name string, op func() error) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !IsUnreachable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.backOff(ctx), func(err error, wait time.Duration) {
		logging.Warn("destination unreachable, retrying",
			"operation", name, "attempt", attempt, "wait", wait, "error", err)
	})

	if err != nil && IsUnreachable(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrDestinationUnreachable, attempt, err)
	}
	return err
}

// ExistingKeys retries the lookup
func (r *Retrying) ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error) {
	var found records.KeySet
	err := r.do(ctx, "lookup", func() error {
		var err error
		found, err = r.Store.ExistingKeys(ctx, keys)
		return err
	})
	return found, err
}

// InsertMany retries the insert. A retry after a lost reply reports the
// rows written by the first attempt as existing.
func (r *Retrying) InsertMany(ctx context.Context, batch []records.Contact) (InsertResult, error) {
	var result InsertResult
	err := r.do(ctx, "insert", func() error {
		var err error
		result, err = r.Store.InsertMany(ctx, batch)
		return err
	})
	return result, err
}

// Ping retries the reachability check when supported
func (r *Retrying) Ping(ctx context.Context) error {
	p, ok := r.Store.(Pinger)
	if !ok {
		return nil
	}
	return r.do(ctx, "ping", func() error { return p.Ping(ctx) })
}

// As finds an optional capability on a store, looking through wrappers
func As[T any](s Store) (T, bool) {
	for s != nil {
		if t, ok := s.(T); ok {
			return t, true
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			break
		}
		s = u.Unwrap()
	}
	var zero T
	return zero, false
}
