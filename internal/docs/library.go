// Package docs serves the shared document folder offered through /docs.
package docs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidName = errors.New("invalid document name")
)

// Library is a flat directory of files.  Names never leave the directory.
type Library struct {
	dir string
}

// Open creates dir if needed and seeds it with a .keep marker.
func Open(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create docs dir: %w", err)
	}
	keep := filepath.Join(dir, ".keep")
	if _, err := os.Stat(keep); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(keep, nil, 0o644); err != nil {
			return nil, fmt.Errorf("seed docs dir: %w", err)
		}
	}
	return &Library{dir: dir}, nil
}

// List returns visible regular files sorted by name.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves a listed name to its file path.
func (l *Library) Path(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	p := filepath.Join(l.dir, clean)
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return p, nil
}

// Save writes r under name, replacing an existing file of that name.
func (l *Library) Save(name string, r io.Reader) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("save %s: %w", clean, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save %s: %w", clean, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, clean)); err != nil {
		return "", fmt.Errorf("save %s: %w", clean, err)
	}
	return clean, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	base := filepath.Base(name)
	if name == "" || base != name || strings.HasPrefix(base, ".") || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return base, nil
}
