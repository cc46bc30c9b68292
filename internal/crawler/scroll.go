package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/browser"
)

// ErrScrollCapReached means the list kept growing until ScrollOptions.MaxWait ran out.
var ErrScrollCapReached = errors.New("crawler: result list still growing at max wait")

// ScrollOptions tunes the scroll-stabilization wait. The wait is a heuristic:
// a list that stops growing for Timeout is assumed fully loaded, which says
// nothing about whether the site has more results to give.
type ScrollOptions struct {
	// Timeout is how long the height must stay unchanged.
	Timeout time.Duration
	// Interval is the delay between height readings.
	Interval time.Duration
	// MaxWait caps the whole wait. Zero means no cap.
	MaxWait time.Duration
}

func DefaultScrollOptions() ScrollOptions {
	return ScrollOptions{
		Timeout:  10 * time.Second,
		Interval: time.Second,
	}
}

// WaitForScrollStable polls the scrollHeight of el until it has not changed
// for opts.Timeout. The user (or the page) is free to scroll the list while
// this runs; every growth restarts the stability window.
func WaitForScrollStable(ctx context.Context, b browser.Browser, el browser.Element, opts ScrollOptions, clk Clock) error {
	read := func(ctx context.Context) (int64, error) {
		var h int64
		err := b.Property(ctx, el, "scrollHeight", &h)
		return h, err
	}
	return waitForStableHeight(ctx, read, opts, clk)
}

func waitForStableHeight(ctx context.Context, read func(context.Context) (int64, error), opts ScrollOptions, clk Clock) error {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	last, err := read(ctx)
	if err != nil {
		return fmt.Errorf("read scroll height: %w", err)
	}
	start := clk.Now()
	stableSince := start

	for {
		if err := clk.Sleep(ctx, opts.Interval); err != nil {
			return err
		}
		h, err := read(ctx)
		if err != nil {
			return fmt.Errorf("read scroll height: %w", err)
		}

		now := clk.Now()
		if h != last {
			last = h
			stableSince = now
		} else if now.Sub(stableSince) >= opts.Timeout {
			return nil
		}

		if opts.MaxWait > 0 && now.Sub(start) >= opts.MaxWait {
			return fmt.Errorf("%w after %s (height %d)", ErrScrollCapReached, opts.MaxWait, last)
		}
	}
}
