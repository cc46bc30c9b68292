package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Static serves pre-rendered HTML pages keyed by URL. It has no script engine:
// pages never change after Navigate, so WaitFor answers immediately and Eval
// is a no-op. Element properties such as scrollHeight are read from data-*
// attributes (data-scrollheight="1200").
type Static struct {
	pages   map[string]*goquery.Document
	current *goquery.Document
	visited []string
}

type staticElement struct {
	sel *goquery.Selection
}

// NewStatic parses every page up front so a malformed fixture fails early.
func NewStatic(pages map[string]string) (*Static, error) {
	s := &Static{pages: make(map[string]*goquery.Document, len(pages))}
	for url, html := range pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", url, err)
		}
		s.pages[url] = doc
	}
	return s, nil
}

func (s *Static) Navigate(_ context.Context, url string) error {
	s.visited = append(s.visited, url)
	doc, ok := s.pages[url]
	if !ok {
		s.current = nil
		return fmt.Errorf("%w: %s", ErrUnknownPage, url)
	}
	s.current = doc
	return nil
}

// Visited lists every URL passed to Navigate, in order.
func (s *Static) Visited() []string {
	return append([]string(nil), s.visited...)
}

func (s *Static) FindAll(_ context.Context, root Element, selector string) ([]Element, error) {
	var found *goquery.Selection
	switch {
	case root != nil:
		sel, err := staticSelection(root)
		if err != nil {
			return nil, err
		}
		found = sel.Find(selector)
	case s.current != nil:
		found = s.current.Find(selector)
	default:
		return []Element{}, nil
	}

	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, staticElement{sel: sel})
	})
	return out, nil
}

func (s *Static) WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]Element, error) {
	els, err := s.FindAll(ctx, nil, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q after %s", ErrTimeout, selector, timeout)
	}
	return els, nil
}

func (s *Static) Attribute(_ context.Context, el Element, name string) (string, bool, error) {
	sel, err := staticSelection(el)
	if err != nil {
		return "", false, err
	}
	v, ok := sel.Attr(name)
	return v, ok, nil
}

func (s *Static) Text(_ context.Context, el Element) (string, error) {
	sel, err := staticSelection(el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sel.Text()), nil
}

// Property decodes the JSON value of data-<name>. A missing attribute leaves
// res untouched.
func (s *Static) Property(_ context.Context, el Element, name string, res any) error {
	sel, err := staticSelection(el)
	if err != nil {
		return err
	}
	raw, ok := sel.Attr("data-" + strings.ToLower(name))
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), res); err != nil {
		return fmt.Errorf("read property %s: %w", name, err)
	}
	return nil
}

func (s *Static) Eval(context.Context, string, any) error {
	return nil
}

func (s *Static) Close() error {
	s.current = nil
	return nil
}

func staticSelection(el Element) (*goquery.Selection, error) {
	se, ok := el.(staticElement)
	if !ok || se.sel == nil {
		return nil, ErrForeignElement
	}
	return se.sel, nil
}
