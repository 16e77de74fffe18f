// Package app owns the client-side state: favorites, search results,
// trending books, suggestions and recommendations.
package app

import (
	"context"
	"strings"
	"sync"

	"bookfinder/internal/catalog"
	"bookfinder/internal/favorites"
	"bookfinder/internal/logging"
	"bookfinder/internal/recommend"
	"bookfinder/internal/suggest"

	"github.com/benbjohnson/clock"
)

const (
	SearchLimit      = 24
	QuickSearchLimit = 12
)

// QuickSearchSubjects are the one-click subject searches offered to students.
var QuickSearchSubjects = []string{
	"computer science", "mathematics", "psychology", "literature",
	"history", "biology", "physics", "economics",
}

// Gateway is the subset of the gateway API the client uses.
type Gateway interface {
	Search(ctx context.Context, q, searchType string, limit int) (catalog.SearchResult, error)
	Trending(ctx context.Context) (catalog.TrendingResult, error)
	Recommendations(ctx context.Context, subjects string) (catalog.RecommendationResult, error)
}

// State is a point-in-time copy of everything the view renders.
type State struct {
	SearchText      string
	SearchType      string
	Results         []catalog.Book
	Trending        []catalog.Book
	TrendingSubject string
	Suggestions     []string
	Favorites       []favorites.FavoriteBook
	Recommendations []catalog.Book
	BasedOnSubject  string
}

type App struct {
	gateway   Gateway
	store     *favorites.Store
	deriver   *recommend.Deriver
	suggester *suggest.Suggester
	debouncer *suggest.Debouncer
	baseCtx   context.Context
	onChange  func(State)

	searchSeq    Sequencer
	trendingSeq  Sequencer
	suggestSeq   Sequencer
	recommendSeq Sequencer

	mu    sync.Mutex
	state State
}

type Option func(*App)

// WithClock sets the time source of the suggestion debouncer.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.debouncer = suggest.NewDebouncer(c, suggest.DebounceDelay) }
}

// WithContext sets the context used by debounced suggestion fetches.
func WithContext(ctx context.Context) Option {
	return func(a *App) { a.baseCtx = ctx }
}

// WithOnChange registers fn to receive a snapshot after every state change.
func WithOnChange(fn func(State)) Option {
	return func(a *App) { a.onChange = fn }
}

func New(gateway Gateway, store *favorites.Store, opts ...Option) *App {
	a := &App{
		gateway:   gateway,
		store:     store,
		deriver:   recommend.NewDeriver(gateway),
		suggester: suggest.NewSuggester(gateway),
		debouncer: suggest.NewDebouncer(clock.New(), suggest.DebounceDelay),
		baseCtx:   context.Background(),
		state: State{
			SearchType:      catalog.TypeGeneral,
			Results:         []catalog.Book{},
			Trending:        []catalog.Book{},
			Suggestions:     []string{},
			Favorites:       []favorites.FavoriteBook{},
			Recommendations: []catalog.Book{},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init loads trending books and saved favorites, then recommendations when
// there are favorites. Failures leave the affected part empty.
func (a *App) Init(ctx context.Context) {
	_ = a.LoadTrending(ctx)
	a.LoadFavorites(ctx)
}

// LoadFavorites reads the saved favorites and derives recommendations when
// there are any.
func (a *App) LoadFavorites(ctx context.Context) {
	favs := a.store.Get(ctx)
	a.update(func(s *State) { s.Favorites = favs })
	if len(favs) > 0 {
		a.refreshRecommendations(ctx, favs)
	}
}

func (a *App) LoadTrending(ctx context.Context) error {
	ticket := a.trendingSeq.Next()
	res, err := a.gateway.Trending(ctx)
	if !a.trendingSeq.IsLatest(ticket) {
		return err
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to load trending books")
		a.update(func(s *State) {
			s.Trending = []catalog.Book{}
			s.TrendingSubject = ""
		})
		return err
	}
	a.update(func(s *State) {
		s.Trending = nonNil(res.Books)
		s.TrendingSubject = res.Subject
	})
	return nil
}

// Search runs a full search for term with the active search type. Blank
// terms are ignored.
func (a *App) Search(ctx context.Context, term string) error {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	a.debouncer.Stop()
	a.suggestSeq.Next()
	a.update(func(s *State) {
		s.SearchText = term
		s.Suggestions = []string{}
	})
	return a.runSearch(ctx, term, a.Snapshot().SearchType, SearchLimit)
}

// QuickSearch runs a subject search with the shorter result limit.
func (a *App) QuickSearch(ctx context.Context, subject string) error {
	if strings.TrimSpace(subject) == "" {
		return nil
	}
	return a.runSearch(ctx, subject, catalog.TypeSubject, QuickSearchLimit)
}

func (a *App) runSearch(ctx context.Context, term, searchType string, limit int) error {
	ticket := a.searchSeq.Next()
	res, err := a.gateway.Search(ctx, term, searchType, limit)
	if !a.searchSeq.IsLatest(ticket) {
		return err
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("term", term).Str("type", searchType).Msg("search failed")
		a.update(func(s *State) { s.Results = []catalog.Book{} })
		return err
	}
	a.update(func(s *State) { s.Results = nonNil(res.Books) })
	return nil
}

// SetSearchType changes the active search type and refreshes suggestions for
// the current text.
func (a *App) SetSearchType(searchType string) {
	var text string
	a.update(func(s *State) {
		s.SearchType = searchType
		text = s.SearchText
	})
	a.scheduleSuggestions(text, searchType)
}

// TypeSearchText records a keystroke. Suggestions are fetched once the text
// has been stable for the debounce delay.
func (a *App) TypeSearchText(text string) {
	var searchType string
	a.update(func(s *State) {
		s.SearchText = text
		searchType = s.SearchType
	})
	a.scheduleSuggestions(text, searchType)
}

func (a *App) scheduleSuggestions(text, searchType string) {
	a.debouncer.Trigger(func() {
		_ = a.fetchSuggestions(a.baseCtx, text, searchType)
	})
}

func (a *App) fetchSuggestions(ctx context.Context, text, searchType string) error {
	ticket := a.suggestSeq.Next()
	got, err := a.suggester.Suggest(ctx, text, searchType)
	if !a.suggestSeq.IsLatest(ticket) {
		return err
	}
	a.update(func(s *State) { s.Suggestions = got })
	return err
}

// AddFavorite saves book and recomputes recommendations. A write failure is
// returned and leaves the favorites unchanged.
func (a *App) AddFavorite(ctx context.Context, book catalog.Book) error {
	favs, err := a.store.Add(ctx, book)
	if err != nil {
		return err
	}
	a.favoritesChanged(ctx, favs)
	return nil
}

func (a *App) RemoveFavorite(ctx context.Context, id string) error {
	favs, err := a.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	a.favoritesChanged(ctx, favs)
	return nil
}

func (a *App) ClearFavorites(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.favoritesChanged(ctx, []favorites.FavoriteBook{})
	return nil
}

func (a *App) IsFavorite(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.state.Favorites {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (a *App) favoritesChanged(ctx context.Context, favs []favorites.FavoriteBook) {
	a.update(func(s *State) { s.Favorites = favs })
	a.refreshRecommendations(ctx, favs)
}

func (a *App) refreshRecommendations(ctx context.Context, favs []favorites.FavoriteBook) {
	ticket := a.recommendSeq.Next()
	res, _ := a.deriver.Derive(ctx, favs)
	if !a.recommendSeq.IsLatest(ticket) {
		return
	}
	a.update(func(s *State) {
		s.Recommendations = nonNil(res.Books)
		s.BasedOnSubject = res.BasedOnSubject
	})
}

// Snapshot returns a copy of the current state.
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyState()
}

// Close cancels a pending suggestion fetch.
func (a *App) Close() {
	a.debouncer.Stop()
}

func (a *App) update(fn func(*State)) {
	a.mu.Lock()
	fn(&a.state)
	snap := a.copyState()
	a.mu.Unlock()
	if a.onChange != nil {
		a.onChange(snap)
	}
}

func (a *App) copyState() State {
	s := a.state
	s.Results = append([]catalog.Book{}, s.Results...)
	s.Trending = append([]catalog.Book{}, s.Trending...)
	s.Suggestions = append([]string{}, s.Suggestions...)
	s.Favorites = append([]favorites.FavoriteBook{}, s.Favorites...)
	s.Recommendations = append([]catalog.Book{}, s.Recommendations...)
	return s
}

func nonNil(books []catalog.Book) []catalog.Book {
	if books == nil {
		return []catalog.Book{}
	}
	return books
}
