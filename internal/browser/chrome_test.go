package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chromePage = `<html><head><title>kopi</title></head><body>
<div class="box" style="height:300px;overflow:auto">
  <div style="height:1200px">
    <a class="hit" href="/place/1">  Kopi Aceh
    </a>
    <a class="hit" href="https://maps.example/place/2">Kopi Gayo</a>
  </div>
</div>
<div class="box">
  <a class="hit" href="place/3">Kopi Sanger</a>
</div>
</body></html>`

// Chrome tests need a local Chrome binary, so they only run with CHROME_TEST=1.
func newTestChrome(t *testing.T, opts ChromeOptions) *Chrome {
	t.Helper()
	if os.Getenv("CHROME_TEST") != "1" {
		t.Skip("CHROME_TEST not set")
	}
	opts.Headless = true
	if opts.ImplicitWait == 0 {
		opts.ImplicitWait = 500 * time.Millisecond
	}
	log, _ := logtest.NewNullLogger()

	c, err := NewChrome(context.Background(), opts, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func chromeFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, chromePage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestChrome_Queries(t *testing.T) {
	c := newTestChrome(t, ChromeOptions{})
	srv := chromeFixtureServer(t)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, srv.URL+"/list"))

	t.Run("missing selector yields an empty slice", func(t *testing.T) {
		start := time.Now()
		got, err := c.FindAll(ctx, nil, "div.nothing")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond, "implicit wait applies")
	})

	t.Run("wait for missing selector times out", func(t *testing.T) {
		_, err := c.WaitFor(ctx, "div.nothing", 200*time.Millisecond)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("zero timeout checks once", func(t *testing.T) {
		start := time.Now()
		_, err := c.WaitFor(ctx, "div.nothing", 0)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Less(t, time.Since(start), 500*time.Millisecond)

		got, err := c.WaitFor(ctx, "a.hit", 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("lookups are scoped to the root", func(t *testing.T) {
		boxes, err := c.FindAll(ctx, nil, "div.box")
		require.NoError(t, err)
		require.Len(t, boxes, 2)

		first, err := c.FindAll(ctx, boxes[0], "a.hit")
		require.NoError(t, err)
		assert.Len(t, first, 2)

		second, err := c.FindAll(ctx, boxes[1], "a.hit")
		require.NoError(t, err)
		require.Len(t, second, 1)
		text, err := c.Text(ctx, second[0])
		require.NoError(t, err)
		assert.Equal(t, "Kopi Sanger", text)
	})

	t.Run("text is trimmed and href is absolute", func(t *testing.T) {
		anchors, err := c.FindAll(ctx, nil, "a.hit")
		require.NoError(t, err)
		require.Len(t, anchors, 3)

		text, err := c.Text(ctx, anchors[0])
		require.NoError(t, err)
		assert.Equal(t, "Kopi Aceh", text)

		want := []string{srv.URL + "/place/1", "https://maps.example/place/2", srv.URL + "/place/3"}
		for i, a := range anchors {
			href, ok, err := c.Attribute(ctx, a, "href")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, want[i], href)
		}

		_, ok, err := c.Attribute(ctx, anchors[0], "aria-label")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("scroll height via property", func(t *testing.T) {
		boxes, err := c.FindAll(ctx, nil, "div.box")
		require.NoError(t, err)
		require.NotEmpty(t, boxes)

		var height float64
		require.NoError(t, c.Property(ctx, boxes[0], "scrollHeight", &height))
		assert.GreaterOrEqual(t, height, float64(1200))
	})

	t.Run("eval", func(t *testing.T) {
		var title string
		require.NoError(t, c.Eval(ctx, "document.title", &title))
		assert.Equal(t, "kopi", title)
	})

	t.Run("foreign element", func(t *testing.T) {
		_, err := c.Text(ctx, "not a node")
		assert.ErrorIs(t, err, ErrForeignElement)
	})
}

func TestChrome_NavigateTimeout(t *testing.T) {
	c := newTestChrome(t, ChromeOptions{NavigateTimeout: 300 * time.Millisecond})

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	start := time.Now()
	err := c.Navigate(context.Background(), srv.URL+"/stalled")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestChrome_NavigateHonoursCallerContext(t *testing.T) {
	c := newTestChrome(t, ChromeOptions{})
	srv := chromeFixtureServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Navigate(ctx, srv.URL+"/list")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChrome_CloseTwice(t *testing.T) {
	c := newTestChrome(t, ChromeOptions{})
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestNewChrome_MissingBinary(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := NewChrome(ctx, ChromeOptions{Headless: true, ExecPath: "/nonexistent/chrome"}, log)
	assert.ErrorContains(t, err, "start chrome")
	assert.Nil(t, c)
}

func TestResolveHref(t *testing.T) {
	tests := []struct {
		name string
		page string
		href string
		want string
	}{
		{"absolute", "https://www.google.com/maps/search/kopi", "https://www.google.com/maps/place/a", "https://www.google.com/maps/place/a"},
		{"root relative", "https://www.google.com/maps/search/kopi", "/maps/place/a?hl=id", "https://www.google.com/maps/place/a?hl=id"},
		{"path relative", "http://127.0.0.1:8080/list", "place/3", "http://127.0.0.1:8080/place/3"},
		{"surrounding space", "http://127.0.0.1:8080/list", " /place/1 ", "http://127.0.0.1:8080/place/1"},
		{"no page yet", "", "/place/1", "/place/1"},
		{"unparseable href", "https://maps.example/", "http://[::1", "http://[::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveHref(tt.page, tt.href))
		})
	}
}
