package crawler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/browser"
	"github.com/AkbarHusein/google-maps-place-crawler/internal/place"
)

// RecordFailure is one place whose address could not be read.
type RecordFailure struct {
	Index int
	Link  string
	Err   error
}

// SaveError is a sink that failed to persist the collection.
type SaveError struct {
	Sink string
	Err  error
}

func (e SaveError) Error() string { return fmt.Sprintf("%s: %v", e.Sink, e.Err) }
func (e SaveError) Unwrap() error { return e.Err }

type EnrichReport struct {
	Total    int
	Resolved int
	Failures []RecordFailure
	SaveErrs []SaveError
	// Err is set when the pass was cancelled before reaching every place.
	Err error
}

// Enrich visits every place and fills in its address, then hands the whole
// collection to the sinks. A place that fails keeps a nil address and the
// pass moves on. Sinks run even if every lookup failed or ctx was cancelled.
func (c *Crawler) Enrich(ctx context.Context, places []place.Place) EnrichReport {
	rep := EnrichReport{Total: len(places)}

	for i := range places {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			c.log.WithError(err).Warn("enrichment interrupted")
			break
		}

		p := &places[i]
		log := c.log.WithFields(logrus.Fields{"index": i, "name": p.DisplayName(), "link": p.Link})
		log.Info("processing place")

		address, err := c.lookupAddress(ctx, p.Link)
		if err != nil {
			p.ClearAddress()
			rep.Failures = append(rep.Failures, RecordFailure{Index: i, Link: p.Link, Err: err})
			log.WithError(err).Warn("failed to retrieve address")
			continue
		}
		p.SetAddress(address)
		rep.Resolved++
		log.WithField("address", address).Info("address found")
	}

	rep.SaveErrs = c.persist(context.WithoutCancel(ctx), places)
	return rep
}

func (c *Crawler) lookupAddress(ctx context.Context, link string) (string, error) {
	if err := c.browser.Navigate(ctx, link); err != nil {
		return "", err
	}
	if err := c.clock.Sleep(ctx, c.opts.SettleDelay); err != nil {
		return "", err
	}
	els, err := c.browser.WaitFor(ctx, AddressSelector, c.opts.AddressTimeout)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", browser.ErrTimeout
	}
	return c.browser.Text(ctx, els[0])
}

func (c *Crawler) persist(ctx context.Context, places []place.Place) []SaveError {
	var errs []SaveError
	for _, s := range c.sinks {
		log := c.log.WithField("sink", s.Name())
		if err := s.Save(ctx, places); err != nil {
			errs = append(errs, SaveError{Sink: s.Name(), Err: err})
			log.WithError(err).Error("failed to save data")
			continue
		}
		log.WithField("places", len(places)).Info("data saved")
	}
	return errs
}
