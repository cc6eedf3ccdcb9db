// Package backoff converts errors into time delays via random exponential backoff.
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Retry calls try repeatedly until it returns without an error, using the
// default configuration. It gives up when ctx is cancelled or try returns a
// Permanent error.
func Retry(ctx context.Context, try func() error) error {
	return Config{}.Retry(ctx, try)
}

// Config holds the parameters of one retry loop.
//
// Report, if non-nil, is called with every failed attempt and may return a
// non-nil error to abort the loop. If nil, failures are logged at WARN.
type Config struct {
	Report      func(error) error
	MinWait     time.Duration // first backoff period, default 1ns
	MaxWait     time.Duration // cap on a single wait, 0 for none
	MaxAttempts int           // 0 retries forever
}

type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanent
	return errors.As(err, &p)
}

func defaultReport(err error) error {
	log.Warn().Err(err).Msg("backoff: attempt failed")
	return nil
}

// Retry calls try until it succeeds, using c.
func (c Config) Retry(ctx context.Context, try func() error) error {
	if c.Report == nil {
		c.Report = defaultReport
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	backoff := c.MinWait
	if backoff <= 0 {
		backoff = 1
	}
	for attempt := 1; ; attempt++ {
		before := time.Now()
		err := try()
		if err == nil {
			return nil
		}
		var p *permanent
		if errors.As(err, &p) {
			return p.err
		}
		if c.MaxAttempts > 0 && attempt >= c.MaxAttempts {
			return err
		}
		elapsed := time.Since(before)

		if rerr := c.Report(err); rerr != nil {
			return rerr
		}

		// Each wait is at least as long as the attempt that just failed.
		if backoff <= elapsed {
			backoff = elapsed
		}
		backoff += time.Duration(rand.Int63n(int64(backoff)))
		if c.MaxWait > 0 && backoff > c.MaxWait {
			backoff = c.MaxWait
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
