// Package songlib keeps user-composed songs in a YAML file so they can be
// listed and programmed by id or name later.
package songlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/song"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound  = errors.New("song not found")
	ErrAmbiguous = errors.New("song reference is ambiguous")
	ErrEmptySong = errors.New("song has no notes")
)

// idLen is the number of uuid characters kept as a song id.
const idLen = 8

// Entry is one stored song. Notation is kept in compact form.
type Entry struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Notation string    `yaml:"notation" json:"notation"`
	Notes    int       `yaml:"notes" json:"notes"`
	Created  time.Time `yaml:"created" json:"created"`
	Updated  time.Time `yaml:"updated" json:"updated"`
}

// Song decodes the stored notation.
func (e Entry) Song() song.Song {
	s, _ := song.FromNotation(e.Notation, e.Name)
	return s
}

type libraryFile struct {
	Songs []Entry `yaml:"songs"`
}

// Option is a functional option for configuring a Library
type Option func(*Library)

// WithClock replaces time.Now for Created/Updated stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// Library is a song collection backed by one YAML file. Songs keep insertion order.
type Library struct {
	path   string
	logger *logrus.Logger
	now    func() time.Time

	mu    sync.Mutex
	songs *orderedmap.OrderedMap[string, Entry]
}

// Open loads the library at path. A missing file is an empty library; it is
// created on the first write.
func Open(path string, logger *logrus.Logger, opts ...Option) (*Library, error) {
	if logger == nil {
		logger = logrus.New()
	}
	l := &Library{
		path:   path,
		logger: logger,
		now:    time.Now,
		songs:  orderedmap.New[string, Entry](),
	}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read song library: %w", err)
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse song library %s: %w", path, err)
	}
	for _, e := range file.Songs {
		l.songs.Set(e.ID, e)
	}
	l.logger.WithFields(logrus.Fields{"path": path, "songs": l.songs.Len()}).Debug("Song library loaded")
	return l, nil
}

// Path returns the backing file.
func (l *Library) Path() string { return l.path }

// Save parses notation and stores it as a new song. Notation warnings are
// returned alongside the entry.
func (l *Library) Save(name, notation string) (Entry, []song.NotationWarning, error) {
	s, warnings := song.FromNotation(notation, name)
	if s.Len() == 0 {
		return Entry{}, warnings, ErrEmptySong
	}

	now := l.now()
	e := Entry{
		ID:       uuid.New().String()[:idLen],
		Name:     name,
		Notation: song.ToCompactNotation(s),
		Notes:    s.Len(),
		Created:  now,
		Updated:  now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.songs.Set(e.ID, e)
	if err := l.persistLocked(); err != nil {
		l.songs.Delete(e.ID)
		return Entry{}, warnings, err
	}
	l.logger.WithFields(logrus.Fields{"id": e.ID, "name": name, "notes": e.Notes}).Info("Song saved")
	return e, warnings, nil
}

// Rename changes the display name of a stored song.
func (l *Library) Rename(ref, name string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.lookupLocked(ref)
	if err != nil {
		return Entry{}, err
	}
	prev := e
	e.Name = name
	e.Updated = l.now()
	l.songs.Set(e.ID, e)
	if err := l.persistLocked(); err != nil {
		l.songs.Set(prev.ID, prev)
		return Entry{}, err
	}
	return e, nil
}

// Get resolves ref as an exact id, an id prefix or a case-insensitive name.
func (l *Library) Get(ref string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(ref)
}

func (l *Library) lookupLocked(ref string) (Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Entry{}, fmt.Errorf("%w: empty reference", ErrNotFound)
	}
	if e, ok := l.songs.Get(ref); ok {
		return e, nil
	}

	var matches []Entry
	for pair := l.songs.Oldest(); pair != nil; pair = pair.Next() {
		e := pair.Value
		if strings.HasPrefix(e.ID, strings.ToLower(ref)) || strings.EqualFold(e.Name, ref) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, fmt.Errorf("%w: %q matches %d songs", ErrAmbiguous, ref, len(matches))
	}
}

// List returns all songs in insertion order.
func (l *Library) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, l.songs.Len())
	for pair := l.songs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Delete removes the song ref resolves to.
func (l *Library) Delete(ref string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.lookupLocked(ref)
	if err != nil {
		return Entry{}, err
	}
	var next *string
	if p := l.songs.GetPair(e.ID).Next(); p != nil {
		next = &p.Key
	}
	l.songs.Delete(e.ID)
	if err := l.persistLocked(); err != nil {
		l.songs.Set(e.ID, e)
		if next != nil {
			_ = l.songs.MoveBefore(e.ID, *next)
		}
		return Entry{}, err
	}
	l.logger.WithField("id", e.ID).Info("Song deleted")
	return e, nil
}

// persistLocked writes the library through a temp file and rename.
func (l *Library) persistLocked() error {
	file := libraryFile{Songs: make([]Entry, 0, l.songs.Len())}
	for pair := l.songs.Oldest(); pair != nil; pair = pair.Next() {
		file.Songs = append(file.Songs, pair.Value)
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to encode song library: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create song library directory: %w", err)
		}
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write song library: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write song library: %w", err)
	}
	return nil
}
