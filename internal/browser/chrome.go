package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultImplicitWait    = 10 * time.Second
	DefaultNavigateTimeout = 300 * time.Second
	DefaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

type ChromeOptions struct {
	Headless        bool
	ImplicitWait    time.Duration
	NavigateTimeout time.Duration
	UserAgent       string
	// ExecPath overrides the Chrome binary found on PATH.
	ExecPath string
	// CaptureDir, when set, receives the final DOM of every visited page
	// together with an index.yaml so the run can be replayed offline.
	CaptureDir string
}

// Chrome drives a local Chrome through the DevTools protocol. One Chrome owns
// one browser process and one tab.
type Chrome struct {
	ctx          context.Context
	cancelAlloc  context.CancelFunc
	cancelTab    context.CancelFunc
	implicitWait time.Duration
	navTimeout   time.Duration
	recorder     *Recorder
	currentURL   string
	closed       bool
	log          logrus.FieldLogger
}

// NewChrome starts the browser and waits for the first tab to be ready. The
// returned Chrome must be closed; on error everything started so far is torn
// down before returning.
func NewChrome(ctx context.Context, opts ChromeOptions, log logrus.FieldLogger) (*Chrome, error) {
	if opts.ImplicitWait <= 0 {
		opts.ImplicitWait = DefaultImplicitWait
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultNavigateTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Debugf),
	)

	c := &Chrome{
		ctx:          tabCtx,
		cancelAlloc:  cancelAlloc,
		cancelTab:    cancelTab,
		implicitWait: opts.ImplicitWait,
		navTimeout:   opts.NavigateTimeout,
		log:          log,
	}

	// An empty Run launches the process and attaches to the first tab.
	if err := chromedp.Run(tabCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	if opts.CaptureDir != "" {
		rec, err := NewRecorder(opts.CaptureDir)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.recorder = rec
	}

	log.WithFields(logrus.Fields{
		"headless":      opts.Headless,
		"implicit_wait": opts.ImplicitWait,
	}).Info("chrome session started")
	return c, nil
}

// run executes actions on the tab. The tab context carries the chromedp
// target, so the caller's ctx only contributes cancellation.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(c.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, target string) error {
	c.capture(ctx)
	if err := c.run(ctx, c.navTimeout, chromedp.Navigate(target)); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	c.currentURL = target
	return nil
}

func (c *Chrome) FindAll(ctx context.Context, root Element, selector string) ([]Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll}
	if root != nil {
		n, err := chromeNode(root)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(n))
	}

	var nodes []*cdp.Node
	err := c.run(ctx, c.implicitWait, chromedp.Nodes(selector, &nodes, opts...))
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return []Element{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return wrapNodes(nodes), nil
}

// WaitFor with a non-positive timeout checks the page once without waiting.
func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]Element, error) {
	var nodes []*cdp.Node
	if timeout <= 0 {
		err := c.run(ctx, c.implicitWait, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
		if err != nil {
			return nil, fmt.Errorf("wait for %q: %w", selector, err)
		}
		if len(nodes) == 0 {
			return nil, fmt.Errorf("%w: %q not present", ErrTimeout, selector)
		}
		return wrapNodes(nodes), nil
	}

	err := c.run(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll))
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %q after %s", ErrTimeout, selector, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}
	return wrapNodes(nodes), nil
}

func (c *Chrome) Attribute(_ context.Context, el Element, name string) (string, bool, error) {
	n, err := chromeNode(el)
	if err != nil {
		return "", false, err
	}
	v, ok := n.Attribute(name)
	if ok && name == "href" {
		v = resolveHref(c.currentURL, v)
	}
	return v, ok, nil
}

// resolveHref makes href absolute against the page it was found on, the way
// the DOM href property does. Unparseable values are returned unchanged.
func resolveHref(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (c *Chrome) Text(ctx context.Context, el Element) (string, error) {
	n, err := chromeNode(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := c.run(ctx, c.implicitWait, chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Chrome) Property(ctx context.Context, el Element, name string, res any) error {
	n, err := chromeNode(el)
	if err != nil {
		return err
	}
	if err := c.run(ctx, c.implicitWait, chromedp.JavascriptAttribute([]cdp.NodeID{n.NodeID}, name, res, chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("read property %s: %w", name, err)
	}
	return nil
}

func (c *Chrome) Eval(ctx context.Context, expr string, res any) error {
	return c.run(ctx, 0, chromedp.Evaluate(expr, res))
}

// Close snapshots the current page when capturing, then shuts the browser
// down. Calling Close more than once is a no-op.
func (c *Chrome) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.capture(context.Background())

	err := chromedp.Cancel(c.ctx)
	c.cancelTab()
	c.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

// capture stores the DOM of the page we are about to leave. Taking it late
// means lazily loaded results are part of the snapshot.
func (c *Chrome) capture(ctx context.Context) {
	if c.recorder == nil || c.currentURL == "" {
		return
	}
	var html string
	if err := c.run(ctx, c.implicitWait, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		c.log.WithError(err).WithField("url", c.currentURL).Warn("capture failed")
		return
	}
	if err := c.recorder.Record(c.currentURL, html); err != nil {
		c.log.WithError(err).WithField("url", c.currentURL).Warn("capture failed")
	}
}

type chromeElement struct {
	node *cdp.Node
}

func chromeNode(el Element) (*cdp.Node, error) {
	ce, ok := el.(chromeElement)
	if !ok || ce.node == nil {
		return nil, ErrForeignElement
	}
	return ce.node, nil
}

func wrapNodes(nodes []*cdp.Node) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, chromeElement{node: n})
	}
	return out
}
