package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/place"
)

// OutputFileName is the file written inside the output directory.
const OutputFileName = "cafes.json"

// PrepareOutput creates dir (and its parents) and returns the output file path.
func PrepareOutput(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(dir, OutputFileName), nil
}

// JSONFile writes the whole collection to one file, replacing what was there.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (j *JSONFile) Name() string { return j.path }

func (j *JSONFile) Save(_ context.Context, places []place.Place) error {
	data, err := Encode(places)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", j.path, err)
	}
	return nil
}

// Encode renders places as a 4-space indented JSON array. Non-ASCII text and
// characters like '&' are written as-is.
func Encode(places []place.Place) ([]byte, error) {
	if places == nil {
		places = []place.Place{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(places); err != nil {
		return nil, fmt.Errorf("encode places: %w", err)
	}
	return buf.Bytes(), nil
}
