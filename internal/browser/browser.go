package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by WaitFor when no element matched in time.
	ErrTimeout = errors.New("browser: timed out waiting for element")
	// ErrUnknownPage is returned by the static browser for URLs it has no page for.
	ErrUnknownPage = errors.New("browser: no page for url")
	// ErrForeignElement means an element handle was passed to a browser that did not create it.
	ErrForeignElement = errors.New("browser: element belongs to another browser")
)

// Element is an opaque handle to a DOM node. Handles are only valid for the
// Browser that returned them and only until the next Navigate.
type Element any

// Browser is the set of page operations the crawler needs. Implementations
// are not safe for concurrent use.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// FindAll returns the elements matching selector below root, or below the
	// document when root is nil. It waits up to the browser's implicit wait for
	// a first match and returns an empty slice, not an error, when none shows up.
	FindAll(ctx context.Context, root Element, selector string) ([]Element, error)
	// WaitFor waits up to timeout for at least one element matching selector.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)
	Text(ctx context.Context, el Element) (string, error)
	// Property reads a JavaScript property of el (e.g. scrollHeight) into res.
	Property(ctx context.Context, el Element, name string, res any) error
	// Eval runs expr in the page and decodes its result into res, which may be nil.
	Eval(ctx context.Context, expr string, res any) error
	Close() error
}

// ConsentScript clicks through the cookie consent wall Google shows to new
// sessions. It returns true when a button was clicked.
const ConsentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Setuju"]',
    'button[aria-label="Terima semua"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`
