package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("report not found")
	ErrInvalidName = errors.New("invalid report name")
)

// Entry describes one persisted report.
type Entry struct {
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Format    Format    `json:"format"`
	Generated time.Time `json:"generated"`
	Size      int64     `json:"size"`
}

// Store reads reports back from the report directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// ParseName recovers domain, timestamp and format from a report file name.
func ParseName(name string) (Entry, error) {
	ext := filepath.Ext(name)
	format := Format(strings.TrimPrefix(ext, "."))
	if format != FormatJSON && format != FormatYAML {
		return Entry{}, ErrInvalidName
	}

	base := strings.TrimSuffix(name, ext)
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return Entry{}, ErrInvalidName
	}

	generated, err := time.Parse(TimestampLayout, base[idx+1:])
	if err != nil {
		return Entry{}, ErrInvalidName
	}

	return Entry{
		Name:      name,
		Domain:    strings.ReplaceAll(base[:idx], "_", "."),
		Format:    format,
		Generated: generated,
	}, nil
}

// List returns the reports in the directory, newest first. A non-empty domain filters
// the result. A missing directory is an empty list.
func (s *Store) List(domain string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	entries := []Entry{}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		e, err := ParseName(de.Name())
		if err != nil {
			continue
		}
		if domain != "" && !strings.EqualFold(e.Domain, domain) {
			continue
		}
		if info, err := de.Info(); err == nil {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Generated.Equal(entries[j].Generated) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Generated.After(entries[j].Generated)
	})
	return entries, nil
}

// Load reads one report by file name.
func (s *Store) Load(name string) (Report, error) {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return Report{}, ErrInvalidName
	}
	e, err := ParseName(name)
	if err != nil {
		return Report{}, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("failed to read report: %w", err)
	}

	r, err := Decode(data, e.Format)
	if err != nil {
		return Report{}, fmt.Errorf("failed to decode report %s: %w", name, err)
	}
	return r, nil
}
