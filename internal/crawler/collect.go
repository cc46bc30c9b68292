package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/place"
)

// CollectReport describes one search. Err is set when collection stopped
// early; Places then holds what was gathered before the failure. A nil Err
// with zero places means the page really had nothing matching.
type CollectReport struct {
	Keyword    string
	URL        string
	Containers int
	Collected  int
	Err        error
}

func (r CollectReport) Partial() bool { return r.Err != nil }

// Collect runs the search for keyword and returns the places found in
// container and anchor order.
func (c *Crawler) Collect(ctx context.Context, keyword string) ([]place.Place, CollectReport) {
	rep := CollectReport{Keyword: keyword, URL: SearchURL(keyword, c.opts.Search)}
	log := c.log.WithField("keyword", keyword)

	places := []place.Place{}
	err := c.collect(ctx, log, &rep, &places)
	rep.Collected = len(places)
	if err != nil {
		rep.Err = err
		log.WithError(err).WithField("collected", rep.Collected).Error("search stopped early")
	}
	log.WithFields(logrus.Fields{
		"containers": rep.Containers,
		"collected":  rep.Collected,
	}).Info("search complete")
	return places, rep
}

func (c *Crawler) collect(ctx context.Context, log logrus.FieldLogger, rep *CollectReport, places *[]place.Place) error {
	if err := c.browser.Navigate(ctx, rep.URL); err != nil {
		return err
	}
	c.dismissConsent(ctx)

	containers, err := c.browser.FindAll(ctx, nil, ContainerSelector)
	if err != nil {
		return fmt.Errorf("find result containers: %w", err)
	}
	rep.Containers = len(containers)
	log.Infof("found %d result containers", len(containers))

	for idx, container := range containers {
		clog := log.WithField("container", idx)
		clog.Info("waiting for result list to stop growing")

		err := WaitForScrollStable(ctx, c.browser, container, c.opts.Scroll, c.clock)
		switch {
		case errors.Is(err, ErrScrollCapReached):
			clog.WithError(err).Warn("collecting what has loaded so far")
		case err != nil:
			return fmt.Errorf("container %d: %w", idx, err)
		}

		anchors, err := c.browser.FindAll(ctx, container, AnchorSelector)
		if err != nil {
			return fmt.Errorf("container %d: find anchors: %w", idx, err)
		}
		for _, a := range anchors {
			name, hasName, err := c.browser.Attribute(ctx, a, "aria-label")
			if err != nil {
				return fmt.Errorf("container %d: read name: %w", idx, err)
			}
			link, _, err := c.browser.Attribute(ctx, a, "href")
			if err != nil {
				return fmt.Errorf("container %d: read link: %w", idx, err)
			}
			*places = append(*places, place.New(name, hasName, link))
		}
		clog.WithField("anchors", len(anchors)).Debug("container collected")
	}
	return nil
}
