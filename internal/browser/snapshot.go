package browser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IndexFile maps captured URLs to the HTML files next to it.
const IndexFile = "index.yaml"

type snapshotIndex struct {
	Pages map[string]string `yaml:"pages"`
}

// Recorder writes page snapshots into a directory. Recording the same URL
// twice overwrites the earlier file.
type Recorder struct {
	dir   string
	index snapshotIndex
}

func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	idx, err := readIndex(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if idx.Pages == nil {
		idx.Pages = make(map[string]string)
	}
	return &Recorder{dir: dir, index: idx}, nil
}

func (r *Recorder) Record(url, html string) error {
	name, ok := r.index.Pages[url]
	if !ok {
		name = fmt.Sprintf("page-%04d.html", len(r.index.Pages)+1)
	}
	if err := os.WriteFile(filepath.Join(r.dir, name), []byte(html), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	r.index.Pages[url] = name

	data, err := yaml.Marshal(r.index)
	if err != nil {
		return fmt.Errorf("encode snapshot index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, IndexFile), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot index: %w", err)
	}
	return nil
}

// LoadStatic builds a Static browser from a directory written by Recorder.
func LoadStatic(dir string) (*Static, error) {
	idx, err := readIndex(dir)
	if err != nil {
		return nil, err
	}
	pages := make(map[string]string, len(idx.Pages))
	for url, name := range idx.Pages {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read snapshot for %s: %w", url, err)
		}
		pages[url] = string(b)
	}
	return NewStatic(pages)
}

func readIndex(dir string) (snapshotIndex, error) {
	var idx snapshotIndex
	b, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return idx, fmt.Errorf("read snapshot index: %w", err)
	}
	if err := yaml.Unmarshal(b, &idx); err != nil {
		return idx, fmt.Errorf("parse snapshot index: %w", err)
	}
	return idx, nil
}
