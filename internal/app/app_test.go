package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookfinder/internal/catalog"
	"bookfinder/internal/favorites"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchCall struct {
	Q     string
	Type  string
	Limit int
}

type fakeGateway struct {
	mu          sync.Mutex
	searches    []searchCall
	recCalls    []string
	trendCalls  int
	searchFn    func(q string) (catalog.SearchResult, error)
	trending    catalog.TrendingResult
	trendingErr error
	rec         catalog.RecommendationResult
}

func (g *fakeGateway) Search(_ context.Context, q, searchType string, limit int) (catalog.SearchResult, error) {
	g.mu.Lock()
	g.searches = append(g.searches, searchCall{q, searchType, limit})
	fn := g.searchFn
	g.mu.Unlock()
	if fn != nil {
		return fn(q)
	}
	return catalog.SearchResult{Books: []catalog.Book{{ID: "s-" + q, Title: q}}, Total: 1}, nil
}

func (g *fakeGateway) Trending(context.Context) (catalog.TrendingResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trendCalls++
	return g.trending, g.trendingErr
}

func (g *fakeGateway) Recommendations(_ context.Context, subjects string) (catalog.RecommendationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recCalls = append(g.recCalls, subjects)
	return g.rec, nil
}

func (g *fakeGateway) searchCalls() []searchCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]searchCall{}, g.searches...)
}

func (g *fakeGateway) recommendationCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.recCalls...)
}

type failingStorage struct {
	favorites.Storage
	fail bool
}

func (f *failingStorage) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("quota exceeded")
	}
	return f.Storage.Set(ctx, key, value)
}

func newTestApp(t *testing.T, g *fakeGateway, opts ...Option) (*App, *favorites.Store) {
	t.Helper()
	store := favorites.NewStore(favorites.NewFileStorage(t.TempDir()))
	a := New(g, store, opts...)
	t.Cleanup(a.Close)
	return a, store
}

func TestApp_InitWithoutFavorites(t *testing.T) {
	g := &fakeGateway{trending: catalog.TrendingResult{Books: []catalog.Book{{ID: "t1"}}, Subject: "physics", Total: 1}}
	a, _ := newTestApp(t, g)

	a.Init(context.Background())

	s := a.Snapshot()
	assert.Equal(t, "physics", s.TrendingSubject)
	assert.Len(t, s.Trending, 1)
	assert.Empty(t, s.Favorites)
	assert.Empty(t, s.Recommendations)
	assert.Empty(t, g.recommendationCalls())
}

func TestApp_InitWithFavoritesLoadsRecommendations(t *testing.T) {
	g := &fakeGateway{rec: catalog.RecommendationResult{
		Books:          []catalog.Book{{ID: "fav"}, {ID: "r1"}},
		BasedOnSubject: "History",
	}}
	a, store := newTestApp(t, g)
	_, err := store.Add(context.Background(), catalog.Book{ID: "fav", Subjects: []string{"History", "War"}})
	require.NoError(t, err)

	a.Init(context.Background())

	s := a.Snapshot()
	require.Len(t, s.Favorites, 1)
	assert.Equal(t, []string{"History,War"}, g.recommendationCalls())
	require.Len(t, s.Recommendations, 1)
	assert.Equal(t, "r1", s.Recommendations[0].ID)
	assert.Equal(t, "History", s.BasedOnSubject)
}

func TestApp_TrendingFailureLeavesEmpty(t *testing.T) {
	g := &fakeGateway{trendingErr: catalog.ErrUpstreamUnavailable}
	a, _ := newTestApp(t, g)

	err := a.LoadTrending(context.Background())

	assert.True(t, errors.Is(err, catalog.ErrUpstreamUnavailable))
	assert.NotNil(t, a.Snapshot().Trending)
	assert.Empty(t, a.Snapshot().Trending)
}

func TestApp_FavoriteMutationsRecomputeRecommendations(t *testing.T) {
	g := &fakeGateway{rec: catalog.RecommendationResult{Books: []catalog.Book{{ID: "a"}, {ID: "r"}}}}
	a, _ := newTestApp(t, g)
	ctx := context.Background()

	require.NoError(t, a.AddFavorite(ctx, catalog.Book{ID: "a", Subjects: []string{"Fantasy"}}))
	assert.True(t, a.IsFavorite("a"))
	require.Len(t, a.Snapshot().Recommendations, 1)

	require.NoError(t, a.AddFavorite(ctx, catalog.Book{ID: "b", Subjects: []string{"Magic", "Fantasy"}}))
	require.NoError(t, a.RemoveFavorite(ctx, "a"))
	require.NoError(t, a.ClearFavorites(ctx))

	assert.Equal(t, []string{"Fantasy", "Fantasy,Magic", "Magic,Fantasy"}, g.recommendationCalls())
	s := a.Snapshot()
	assert.Empty(t, s.Favorites)
	assert.Empty(t, s.Recommendations)
	assert.False(t, a.IsFavorite("b"))
}

func TestApp_AddFavoriteWriteFailure(t *testing.T) {
	g := &fakeGateway{}
	storage := &failingStorage{Storage: favorites.NewFileStorage(t.TempDir())}
	a := New(g, favorites.NewStore(storage))
	ctx := context.Background()
	require.NoError(t, a.AddFavorite(ctx, catalog.Book{ID: "a"}))

	storage.fail = true
	err := a.AddFavorite(ctx, catalog.Book{ID: "b"})

	require.Error(t, err)
	s := a.Snapshot()
	require.Len(t, s.Favorites, 1)
	assert.Equal(t, "a", s.Favorites[0].ID)
}

func TestApp_Search(t *testing.T) {
	g := &fakeGateway{}
	a, _ := newTestApp(t, g)
	ctx := context.Background()

	require.NoError(t, a.Search(ctx, "   "))
	assert.Empty(t, g.searchCalls())

	a.SetSearchType(catalog.TypeAuthor)
	require.NoError(t, a.Search(ctx, "tolkien"))
	require.NoError(t, a.QuickSearch(ctx, "computer science"))

	calls := g.searchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, searchCall{"tolkien", catalog.TypeAuthor, 24}, calls[0])
	assert.Equal(t, searchCall{"computer science", catalog.TypeSubject, 12}, calls[1])
	assert.Equal(t, "s-computer science", a.Snapshot().Results[0].ID)
}

func TestApp_SearchFailureClearsResults(t *testing.T) {
	g := &fakeGateway{}
	a, _ := newTestApp(t, g)
	ctx := context.Background()
	require.NoError(t, a.Search(ctx, "dune"))
	require.Len(t, a.Snapshot().Results, 1)

	g.mu.Lock()
	g.searchFn = func(string) (catalog.SearchResult, error) { return catalog.SearchResult{}, catalog.ErrUpstreamUnavailable }
	g.mu.Unlock()

	assert.Error(t, a.Search(ctx, "dune"))
	assert.Empty(t, a.Snapshot().Results)
}

func TestApp_StaleSearchResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	g := &fakeGateway{searchFn: func(q string) (catalog.SearchResult, error) {
		if q == "slow" {
			close(started)
			<-release
		}
		return catalog.SearchResult{Books: []catalog.Book{{ID: q}}}, nil
	}}
	a, _ := newTestApp(t, g)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- a.Search(ctx, "slow") }()
	<-started
	require.NoError(t, a.Search(ctx, "fast"))
	close(release)
	require.NoError(t, <-done)

	s := a.Snapshot()
	require.Len(t, s.Results, 1)
	assert.Equal(t, "fast", s.Results[0].ID)
}

func TestApp_DebouncedSuggestions(t *testing.T) {
	mc := clock.NewMock()
	g := &fakeGateway{searchFn: func(q string) (catalog.SearchResult, error) {
		return catalog.SearchResult{Books: []catalog.Book{{Title: "Dune"}, {Title: "Dune Messiah"}}}, nil
	}}
	a, _ := newTestApp(t, g, WithClock(mc))

	a.TypeSearchText("d")
	mc.Add(100 * time.Millisecond)
	a.TypeSearchText("du")
	mc.Add(100 * time.Millisecond)
	a.TypeSearchText("dun")
	mc.Add(300 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(a.Snapshot().Suggestions) == 2
	}, time.Second, 5*time.Millisecond)

	calls := g.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, searchCall{"dun", catalog.TypeGeneral, 5}, calls[0])
	assert.Equal(t, []string{"Dune", "Dune Messiah"}, a.Snapshot().Suggestions)
}

func TestApp_ShortTextClearsSuggestions(t *testing.T) {
	mc := clock.NewMock()
	g := &fakeGateway{searchFn: func(q string) (catalog.SearchResult, error) {
		return catalog.SearchResult{Books: []catalog.Book{{Title: "Dune"}}}, nil
	}}
	a, _ := newTestApp(t, g, WithClock(mc))

	a.TypeSearchText("dune")
	mc.Add(suggestDelay())
	require.Eventually(t, func() bool { return len(a.Snapshot().Suggestions) == 1 }, time.Second, 5*time.Millisecond)

	a.TypeSearchText("d")
	mc.Add(suggestDelay())
	assert.Eventually(t, func() bool { return len(a.Snapshot().Suggestions) == 0 }, time.Second, 5*time.Millisecond)
	assert.Len(t, g.searchCalls(), 1)
}

func TestApp_SearchCancelsPendingSuggestions(t *testing.T) {
	mc := clock.NewMock()
	g := &fakeGateway{}
	a, _ := newTestApp(t, g, WithClock(mc))
	ctx := context.Background()

	a.TypeSearchText("dune")
	require.NoError(t, a.Search(ctx, "dune"))
	mc.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	calls := g.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, SearchLimit, calls[0].Limit)
	assert.Empty(t, a.Snapshot().Suggestions)
}

func TestApp_OnChange(t *testing.T) {
	var mu sync.Mutex
	var snaps []State
	g := &fakeGateway{trending: catalog.TrendingResult{Subject: "history"}}
	a, _ := newTestApp(t, g, WithOnChange(func(s State) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))

	require.NoError(t, a.LoadTrending(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	assert.Equal(t, "history", snaps[len(snaps)-1].TrendingSubject)
}

func TestSequencer(t *testing.T) {
	var s Sequencer
	first := s.Next()
	second := s.Next()

	assert.False(t, s.IsLatest(first))
	assert.True(t, s.IsLatest(second))
}

func suggestDelay() time.Duration { return 300 * time.Millisecond }
