// Package repo owns the in-memory command list and mirrors every change to
// the key-value store.
package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"quickroot/codec"
	"quickroot/model"
)

// Key is the store key holding the encoded command list.
const Key = "commands"

var (
	ErrEmptyName = errors.New("name is required")
	ErrNotFound  = errors.New("command not found")
)

// Store is the persistence substrate. *db.DB satisfies it.
type Store interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Repository holds the current command list. The list is only ever replaced
// wholesale, so snapshots handed out by List stay valid.
type Repository struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	commands []model.Command
}

type Option func(*Repository)

// WithClock overrides the time source used for identifiers.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New loads the persisted list from store. A decode failure is returned as-is;
// callers treat it as fatal.
func New(store Store, logger *slog.Logger, opts ...Option) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	commands, err := r.Load()
	if err != nil {
		return nil, err
	}
	r.commands = commands
	return r, nil
}

// Load reads the persisted list. An absent key yields an empty list.
func (r *Repository) Load() ([]model.Command, error) {
	raw, ok, err := r.store.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	if !ok {
		return []model.Command{}, nil
	}
	commands, err := codec.Decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("load commands: %w", err)
	}
	return commands, nil
}

// Save encodes list, writes it over the previous content and makes it the
// current snapshot.
func (r *Repository) Save(list []model.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]model.Command, len(list))
	copy(next, list)
	return r.replace(next)
}

// replace must be called with mu held. On failure the snapshot is unchanged.
func (r *Repository) replace(list []model.Command) error {
	data, err := codec.Encode(list)
	if err != nil {
		return fmt.Errorf("encode commands: %w", err)
	}
	if err := r.store.Put(Key, string(data)); err != nil {
		return fmt.Errorf("persist commands: %w", err)
	}
	r.commands = list
	r.logger.Debug("commands persisted", "count", len(list))
	return nil
}

// List returns a copy of the current list in insertion order.
func (r *Repository) List() []model.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

func (r *Repository) Get(id int64) (model.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		if c.ID == id {
			return c, true
		}
	}
	return model.Command{}, false
}

// FindByName returns the first command whose name matches exactly.
func (r *Repository) FindByName(name string) (model.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		if c.Name == name {
			return c, true
		}
	}
	return model.Command{}, false
}

// Add appends a new command with a fresh identifier.
func (r *Repository) Add(name, script string) (model.Command, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Command{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.idSource()
	c := model.Command{ID: ids(), Name: name, Script: script}

	next := append(r.snapshot(), c)
	if err := r.replace(next); err != nil {
		return model.Command{}, err
	}
	r.logger.Debug("command added", "id", c.ID, "name", c.Name)
	return c, nil
}

// Delete removes the first command with the given id.
func (r *Repository) Delete(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]model.Command, 0, len(r.commands))
	removed := false
	for _, c := range r.commands {
		if !removed && c.ID == id {
			removed = true
			continue
		}
		next = append(next, c)
	}
	if !removed {
		return false, nil
	}
	if err := r.replace(next); err != nil {
		return false, err
	}
	r.logger.Debug("command deleted", "id", id)
	return true, nil
}

// MergeAppend gives every imported command a fresh identifier and appends
// them after the existing ones. It returns the appended commands.
func (r *Repository) MergeAppend(imported []model.Command) ([]model.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.idSource()
	added := make([]model.Command, len(imported))
	for i, c := range imported {
		c.ID = ids()
		added[i] = c
	}

	next := append(r.snapshot(), added...)
	if err := r.replace(next); err != nil {
		return nil, err
	}
	r.logger.Info("commands appended", "count", len(added))
	return added, nil
}

// MergeOverwrite replaces the whole list with imported, identifiers included.
func (r *Repository) MergeOverwrite(imported []model.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]model.Command, len(imported))
	copy(next, imported)
	if err := r.replace(next); err != nil {
		return err
	}
	r.logger.Info("commands overwritten", "count", len(next))
	return nil
}

// snapshot returns a copy of the list with room for appends. mu must be held.
func (r *Repository) snapshot() []model.Command {
	out := make([]model.Command, len(r.commands), len(r.commands)+1)
	copy(out, r.commands)
	return out
}

// idSource returns a generator of identifiers strictly greater than every
// identifier currently in the list and than any it has already produced.
// Values track the clock in milliseconds when the clock is ahead. Once the
// top of the int64 range is taken it hands out the smallest unused positive
// identifiers instead.
// mu must be held.
func (r *Repository) idSource() func() int64 {
	var last int64
	used := make(map[int64]bool, len(r.commands))
	for _, c := range r.commands {
		used[c.ID] = true
		if c.ID > last {
			last = c.ID
		}
	}
	var gap int64
	return func() int64 {
		if last == math.MaxInt64 {
			for gap++; used[gap]; gap++ {
			}
			used[gap] = true
			return gap
		}
		id := r.now().UnixMilli()
		if id <= last {
			id = last + 1
		}
		last = id
		used[id] = true
		return id
	}
}
