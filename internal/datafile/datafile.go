// Package datafile renders and writes the header-less CSV files the load
// scenario iterates over.
package datafile

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/fanload/internal/api"
	"github.com/torosent/fanload/internal/config"
	"github.com/torosent/fanload/internal/seed"
)

// LockName is the advisory lock taken in the output directory while the
// files are written.
const LockName = ".fanload.lock"

const lockRetryDelay = 50 * time.Millisecond

// Set holds the rendered contents of the three data files.
type Set struct {
	Schedules []byte
	Fans      []byte
	Videos    []byte
}

// Build renders the data files for token.
//
// Schedule rows are token,serial,date for every schedule date (outer) and
// every fan (inner). Fan rows are token,serial. Video rows are
// token,serial,date,payload where payload is the base64 encoded JSON array
// of the fan's media items.
func Build(token string, fans []api.Fan, schedules []api.Schedule, media []seed.MediaAssociation) (*Set, error) {
	var set Set
	var err error

	set.Schedules, err = render(func(w *csv.Writer) error {
		for _, s := range schedules {
			for _, f := range fans {
				if err := w.Write([]string{token, f.Serial, s.Data}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render schedule rows: %w", err)
	}

	set.Fans, err = render(func(w *csv.Writer) error {
		for _, f := range fans {
			if err := w.Write([]string{token, f.Serial}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render fan rows: %w", err)
	}

	set.Videos, err = render(func(w *csv.Writer) error {
		for _, m := range media {
			payload, err := EncodePayload(m.Videos)
			if err != nil {
				return fmt.Errorf("fan %s: %w", m.Serial, err)
			}
			if err := w.Write([]string{token, m.Serial, m.Data, payload}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render video rows: %w", err)
	}

	return &set, nil
}

func render(rows func(w *csv.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := rows(w); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePayload returns the standard base64 encoding of items as a JSON
// array. A nil slice encodes as an empty array.
func EncodePayload(items []seed.MediaItem) (string, error) {
	if items == nil {
		items = []seed.MediaItem{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Writer writes a Set into an output directory.
type Writer struct {
	dir   string
	files config.Files
}

func NewWriter(dir string, files config.Files) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir, files: files}
}

// Write truncates and writes every file of set, holding the directory lock
// for the whole batch. It returns the written paths in emission order.
func (w *Writer) Write(ctx context.Context, set *Set) ([]string, error) {
	if set == nil {
		return nil, errors.New("nothing to write")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(w.dir, LockName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock output dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock output dir: %s is held by another run", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	outputs := []struct {
		name string
		data []byte
	}{
		{w.files.Schedules, set.Schedules},
		{w.files.Fans, set.Fans},
		{w.files.Videos, set.Videos},
	}

	paths := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := w.path(o.name)
		if err := os.WriteFile(path, o.data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", o.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}

// Cleanup removes a leftover data file from a previous run. It reports
// whether a file was removed; a missing file is not an error.
func Cleanup(dir, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
