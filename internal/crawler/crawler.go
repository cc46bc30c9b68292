package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/browser"
	"github.com/AkbarHusein/google-maps-place-crawler/internal/place"
)

// Selectors are tied to the current Google Maps markup. When Google changes
// class names these match nothing and the crawl comes back empty.
const (
	ContainerSelector = ".m6QErb.DxyBCb.kA9KIf.dS8AEf.XiKgde.ecceSd"
	AnchorSelector    = "a.hfpxzc"
	AddressSelector   = ".Io6YTe.fontBodyMedium.kR99db.fdkmkc"
)

const (
	mapsBaseURL   = "https://www.google.com/maps/"
	searchBaseURL = mapsBaseURL + "search/"
	entryParams   = "entry=ttu&g_ep=EgoyMDI0MTIxMS4wIKXMDSoASAFQAw%3D%3D"
)

// MapView is the center and zoom level a maps URL is anchored at.
type MapView struct {
	Lat  float64
	Lng  float64
	Zoom int
}

var (
	DefaultOverview = MapView{Lat: 5.1918507, Lng: 97.0299829, Zoom: 12}
	DefaultSearch   = MapView{Lat: 5.1921819, Lng: 97.0296394, Zoom: 12}
)

func (v MapView) anchor() string {
	return fmt.Sprintf("@%s,%s,%dz",
		strconv.FormatFloat(v.Lat, 'f', -1, 64),
		strconv.FormatFloat(v.Lng, 'f', -1, 64),
		v.Zoom,
	)
}

// OverviewURL is the plain map centered on view.
func OverviewURL(view MapView) string {
	return mapsBaseURL + view.anchor() + "?" + entryParams
}

// SearchURL is the result list for keyword around view. Spaces become '+'.
func SearchURL(keyword string, view MapView) string {
	return searchBaseURL + url.QueryEscape(keyword) + "/" + view.anchor() + "/data=!3m1!4b1?" + entryParams
}

type Options struct {
	Overview MapView
	Search   MapView
	Scroll   ScrollOptions
	// SettleDelay is slept after opening a place page. Place pages swap
	// their panel in without a signal we can wait on, so this is a guess.
	SettleDelay    time.Duration
	AddressTimeout time.Duration
}

func DefaultOptions() Options {
	scroll := DefaultScrollOptions()
	scroll.Timeout = 5 * time.Second
	return Options{
		Overview:       DefaultOverview,
		Search:         DefaultSearch,
		Scroll:         scroll,
		SettleDelay:    2 * time.Second,
		AddressTimeout: 3 * time.Second,
	}
}

// Sink persists the final collection.
type Sink interface {
	Name() string
	Save(ctx context.Context, places []place.Place) error
}

type Crawler struct {
	browser browser.Browser
	sinks   []Sink
	opts    Options
	clock   Clock
	log     logrus.FieldLogger
}

func New(b browser.Browser, opts Options, log logrus.FieldLogger, sinks ...Sink) *Crawler {
	return &Crawler{
		browser: b,
		sinks:   sinks,
		opts:    opts,
		clock:   realClock{},
		log:     log,
	}
}

// WithClock swaps the time source used for sleeps and the scroll wait.
func (c *Crawler) WithClock(clk Clock) *Crawler {
	c.clock = clk
	return c
}

// Report is the outcome of a full Run.
type Report struct {
	Places  []place.Place
	Collect CollectReport
	Enrich  EnrichReport
}

// Run opens the map, collects results for keyword and enriches them. It never
// fails as a whole; stage problems are reported in the Report.
func (c *Crawler) Run(ctx context.Context, keyword string) Report {
	c.Warmup(ctx)
	places, collect := c.Collect(ctx, keyword)
	enrich := c.Enrich(ctx, places)
	c.log.WithFields(logrus.Fields{
		"keyword":  keyword,
		"places":   len(places),
		"resolved": enrich.Resolved,
		"failed":   len(enrich.Failures),
		"partial":  collect.Partial(),
	}).Info("crawl finished")
	return Report{Places: places, Collect: collect, Enrich: enrich}
}

// Warmup opens the map overview and clicks away the consent wall if there is
// one. Problems are logged only; the search navigation will surface anything
// that matters.
func (c *Crawler) Warmup(ctx context.Context) {
	u := OverviewURL(c.opts.Overview)
	if err := c.browser.Navigate(ctx, u); err != nil {
		c.log.WithError(err).Warn("could not open map overview")
		return
	}
	c.dismissConsent(ctx)
}

func (c *Crawler) dismissConsent(ctx context.Context) {
	var clicked bool
	if err := c.browser.Eval(ctx, browser.ConsentScript, &clicked); err != nil {
		c.log.WithError(err).Debug("consent script failed")
		return
	}
	if clicked {
		c.log.Info("dismissed consent dialog")
	}
}
