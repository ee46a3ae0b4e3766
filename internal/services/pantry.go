// Package services implements the built-in dispatch targets: a YAML-backed
// pantry inventory and the shopping-list generator that composes with it.
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Item is one pantry entry. Multiple entries may share a name (two cartons
// of milk bought on different days), which is exactly what makes name
// references ambiguous.
type Item struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Category string    `yaml:"category,omitempty"`
	Quantity float64   `yaml:"quantity"`
	Unit     string    `yaml:"unit,omitempty"`
	AddedAt  time.Time `yaml:"added_at"`
	Notes    string    `yaml:"notes,omitempty"`
}

// Handle converts the item to an opaque candidate handle for disambiguation.
func (i Item) Handle() models.EntityHandle {
	label := i.Name
	if !i.AddedAt.IsZero() {
		label = fmt.Sprintf("%s (added %s)", i.Name, i.AddedAt.Format("Jan 2"))
	}
	return models.EntityHandle{ID: i.ID, Label: label}
}

// inventory is the on-disk document shape.
type inventory struct {
	Items   []Item   `yaml:"items"`
	Staples []string `yaml:"staples,omitempty"`
}

// Store is the YAML-backed pantry inventory. External edits to the file are
// picked up through a watcher; programmatic mutations write through to disk.
type Store struct {
	path string

	mu      sync.RWMutex
	items   []Item
	staples []string

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// OpenStore loads the pantry file at path, creating an empty one if missing,
// and starts watching it for external edits.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create pantry directory: %w", err)
	}

	s := &Store{
		path: path,
		done: make(chan struct{}),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	// Watch the directory rather than the file so atomic replace-by-rename
	// edits are still observed.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without the watcher; reads just won't see external edits
		// until the next process start.
		return s, nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watchFile()

	return s, nil
}

// Close stops the file watcher. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

// Path returns the pantry file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) watchFile() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.load()
			}
		case <-s.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// load reads the file into memory. It holds s.mu across the read and the
// swap: mutations write the file under the same lock, so a reload can never
// observe a file older than what memory already holds.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read pantry file: %w", err)
	}

	var doc inventory
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse pantry file %s: %w", s.path, err)
	}

	s.items = doc.Items
	s.staples = doc.Staples
	return nil
}

// saveLocked writes memory back to the file. Caller must hold s.mu, except
// during single-goroutine construction in OpenStore.
func (s *Store) saveLocked() error {
	doc := inventory{Items: s.items, Staples: s.staples}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal pantry: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write pantry file: %w", err)
	}
	return nil
}

// Items returns a copy of the current inventory.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Staples returns the configured staple item names.
func (s *Store) Staples() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.staples))
	copy(out, s.staples)
	return out
}

// FindMatches returns the items whose name matches the reference,
// case-insensitively, newest first.
func (s *Store) FindMatches(reference string) []Item {
	needle := strings.ToLower(strings.TrimSpace(reference))
	if needle == "" {
		return nil
	}

	s.mu.RLock()
	var matches []Item
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			matches = append(matches, item)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].AddedAt.After(matches[j].AddedAt)
	})
	return matches
}

// Add inserts a new item and persists the inventory. The item's ID and
// AddedAt are assigned here.
func (s *Store) Add(item Item) (Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return Item{}, fmt.Errorf("item name is required")
	}
	item.ID = uuid.New().String()
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	if err := s.saveLocked(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return Item{}, err
	}
	return item, nil
}

// Remove deletes the items with the given IDs and persists the inventory.
// It returns the removed items.
func (s *Store) Remove(ids ...string) ([]Item, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var kept, removed []Item
	for _, item := range s.items {
		if wanted[item.ID] {
			removed = append(removed, item)
		} else {
			kept = append(kept, item)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	prior := s.items
	s.items = kept
	if err := s.saveLocked(); err != nil {
		s.items = prior
		return nil, err
	}
	return removed, nil
}
