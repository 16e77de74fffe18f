// Package favorites keeps the user's saved books in client-local storage.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bookfinder/internal/catalog"
	"bookfinder/internal/logging"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
)

// StorageKey is the single key the whole collection is stored under.
const StorageKey = "bookFavorites"

// ErrNotFound is returned by a Storage when the key has never been written.
var ErrNotFound = errors.New("storage key not found")

// Storage is a minimal key/value store. Values are opaque JSON documents.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// FavoriteBook is a Book plus the time it was saved.
type FavoriteBook struct {
	catalog.Book
	DateAdded time.Time `json:"dateAdded"`
}

// IDs returns the set of ids in favs.
func IDs(favs []FavoriteBook) map[string]struct{} {
	ids := make(map[string]struct{}, len(favs))
	for _, f := range favs {
		ids[f.ID] = struct{}{}
	}
	return ids
}

type Store struct {
	storage Storage
	clock   clock.Clock
	key     string
}

type Option func(*Store)

// WithClock sets the time source used to stamp DateAdded.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithKey stores the collection under a key other than StorageKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{storage: storage, clock: clock.New(), key: StorageKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the collection. A missing key, unreadable backend or corrupt
// document all yield an empty collection.
func (s *Store) Get(ctx context.Context) []FavoriteBook {
	raw, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Str("key", s.key).Msg("failed to load favorites")
		}
		return []FavoriteBook{}
	}

	var favs []FavoriteBook
	if err := json.Unmarshal(raw, &favs); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("key", s.key).Msg("corrupt favorites document")
		return []FavoriteBook{}
	}
	if favs == nil {
		favs = []FavoriteBook{}
	}
	return favs
}

// Set replaces the whole collection.
func (s *Store) Set(ctx context.Context, favs []FavoriteBook) error {
	if favs == nil {
		favs = []FavoriteBook{}
	}
	raw, err := json.Marshal(favs)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("key", s.key).Msg("failed to save favorites")
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}

// Add appends book stamped with the current time. A book whose id is already
// present leaves the collection untouched. The returned slice is the
// collection after the call.
func (s *Store) Add(ctx context.Context, book catalog.Book) ([]FavoriteBook, error) {
	favs := s.Get(ctx)
	if _, ok := IDs(favs)[book.ID]; ok {
		return favs, nil
	}

	next := make([]FavoriteBook, 0, len(favs)+1)
	next = append(next, favs...)
	next = append(next, FavoriteBook{Book: book, DateAdded: s.clock.Now().UTC()})
	if err := s.Set(ctx, next); err != nil {
		return favs, err
	}
	return next, nil
}

// Remove drops the entry with id. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) ([]FavoriteBook, error) {
	favs := s.Get(ctx)
	next := make([]FavoriteBook, 0, len(favs))
	for _, f := range favs {
		if f.ID != id {
			next = append(next, f)
		}
	}
	if len(next) == len(favs) {
		return favs, nil
	}
	if err := s.Set(ctx, next); err != nil {
		return favs, err
	}
	return next, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.Set(ctx, []FavoriteBook{})
}

func (s *Store) Contains(ctx context.Context, id string) bool {
	_, ok := IDs(s.Get(ctx))[id]
	return ok
}

// SortedByDateAdded returns a copy of favs, newest first.
func SortedByDateAdded(favs []FavoriteBook) []FavoriteBook {
	out := make([]FavoriteBook, len(favs))
	copy(out, favs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateAdded.After(out[j].DateAdded)
	})
	return out
}
