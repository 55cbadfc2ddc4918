// Package directory maintains the known-user list: a file-backed mapping
// from normalized participant name to an admin flag.
//
// The file holds one record per line in the form name[|alias...][^].
// A trailing ^ marks the record as admin and blank lines are ignored.
package directory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/usherbot/usherbot/internal/textutil"
)

const adminMarker = "^"

// Directory is safe for concurrent use.
type Directory struct {
	path string

	mu      sync.RWMutex
	users   map[string]bool
	modTime time.Time
}

// New creates a directory backed by path. Nothing is read until Reload.
func New(path string) *Directory {
	return &Directory{path: path, users: map[string]bool{}}
}

// Path returns the backing file path.
func (d *Directory) Path() string { return d.path }

// Reload rebuilds the map when the backing file changed since the last
// load. A missing file keeps the current entries. It reports whether a
// reload happened.
func (d *Directory) Reload() (bool, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat known users: %w", err)
	}

	d.mu.RLock()
	unchanged := info.ModTime().Equal(d.modTime)
	d.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return false, fmt.Errorf("open known users: %w", err)
	}
	defer f.Close()

	users, err := Parse(f)
	if err != nil {
		return false, fmt.Errorf("parse known users: %w", err)
	}

	d.mu.Lock()
	d.users = users
	d.modTime = info.ModTime()
	d.mu.Unlock()

	slog.Info("Loaded known users", "path", d.path, "count", len(users))
	return true, nil
}

// Replace swaps in an already parsed map.
func (d *Directory) Replace(users map[string]bool) {
	cp := make(map[string]bool, len(users))
	for k, v := range users {
		cp[k] = v
	}
	d.mu.Lock()
	d.users = cp
	d.mu.Unlock()
}

// Parse reads known-user records. Aliases normalizing to the same key OR
// their admin flags.
func Parse(r io.Reader) (map[string]bool, error) {
	users := map[string]bool{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		admin := strings.HasSuffix(line, adminMarker)
		if admin {
			line = strings.TrimRight(line, adminMarker)
		}
		for _, alias := range strings.Split(line, "|") {
			key := textutil.NormalizeName(alias)
			if key == "" {
				continue
			}
			users[key] = users[key] || admin
		}
	}
	return users, sc.Err()
}

// Lookup reports whether name is known and whether it is an admin.
func (d *Directory) Lookup(name string) (known, admin bool) {
	key := textutil.NormalizeName(name)
	if key == "" {
		return false, false
	}
	d.mu.RLock()
	admin, known = d.users[key]
	d.mu.RUnlock()
	return known, admin
}

// IsKnown is Lookup without the admin flag.
func (d *Directory) IsKnown(name string) bool {
	known, _ := d.Lookup(name)
	return known
}

// IsAdmin reports whether name is a known admin.
func (d *Directory) IsAdmin(name string) bool {
	_, admin := d.Lookup(name)
	return admin
}

// Len is the number of normalized names.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Entry is one normalized name.
type Entry struct {
	Name  string
	Admin bool
}

// Entries lists the directory sorted by name.
func (d *Directory) Entries() []Entry {
	d.mu.RLock()
	out := make([]Entry, 0, len(d.users))
	for name, admin := range d.users {
		out = append(out, Entry{Name: name, Admin: admin})
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
