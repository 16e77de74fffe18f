package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"bookfinder/internal/logging"
	"bookfinder/internal/metrics"
	"bookfinder/internal/platform/openlibrary"
)

const (
	DefaultSearchLimit          = 20
	MaxSearchLimit              = 100
	DefaultTrendingLimit        = 12
	DefaultRecommendationsLimit = 8
	sortByRating                = "rating"
)

// Search types accepted by Search. Anything else falls back to TypeGeneral.
const (
	TypeGeneral = "general"
	TypeTitle   = "title"
	TypeAuthor  = "author"
	TypeSubject = "subject"
	TypeISBN    = "isbn"
)

// TrendingSubjects is the fixed pool trending picks from.
var TrendingSubjects = []string{
	"computer_science", "mathematics", "psychology", "history",
	"literature", "physics", "biology", "economics",
}

// FilterField returns the single upstream query parameter for a search type.
func FilterField(searchType string) string {
	switch searchType {
	case TypeTitle:
		return "title"
	case TypeAuthor:
		return "author"
	case TypeSubject:
		return "subject"
	case TypeISBN:
		return "isbn"
	default:
		return "q"
	}
}

// Searcher is the upstream catalog.
type Searcher interface {
	Search(ctx context.Context, p openlibrary.SearchParams) (*openlibrary.SearchResponse, error)
}

// Chooser picks an index in [0, n). *rand.Rand satisfies it.
type Chooser interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type SearchQuery struct {
	Q     string
	Type  string
	Limit int
}

type SearchResult struct {
	Books []Book `json:"books"`
	Total int    `json:"total"`
}

type TrendingResult struct {
	Books   []Book `json:"books"`
	Subject string `json:"subject"`
	Total   int    `json:"total"`
}

type RecommendationResult struct {
	Books          []Book `json:"books"`
	BasedOnSubject string `json:"basedOnSubject"`
}

type Service struct {
	upstream Searcher
	chooser  Chooser
}

type Option func(*Service)

// WithChooser replaces the random source used for subject selection.
// The chooser must be safe for concurrent use when the service is shared.
func WithChooser(c Chooser) Option {
	return func(s *Service) { s.chooser = c }
}

func NewService(upstream Searcher, opts ...Option) *Service {
	s := &Service{upstream: upstream, chooser: globalRand{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	if strings.TrimSpace(q.Q) == "" {
		return SearchResult{}, fmt.Errorf("%w: search query is required", ErrInvalidRequest)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	res, err := s.upstream.Search(ctx, openlibrary.SearchParams{
		Operation: "search",
		Field:     FilterField(q.Type),
		Value:     q.Q,
		Limit:     limit,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("type", q.Type).Msg("search failed")
		return SearchResult{}, fmt.Errorf("%w: search: %v", ErrUpstreamUnavailable, err)
	}

	return SearchResult{
		Books: NormalizeAll(res.Docs, SearchProfile),
		Total: res.NumFound,
	}, nil
}

func (s *Service) Trending(ctx context.Context, limit int) (TrendingResult, error) {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	subject := TrendingSubjects[s.chooser.IntN(len(TrendingSubjects))]
	metrics.TrendingSubjectSelections.WithLabelValues(subject).Inc()

	res, err := s.upstream.Search(ctx, openlibrary.SearchParams{
		Operation: "trending",
		Field:     "subject",
		Value:     subject,
		Sort:      sortByRating,
		Limit:     limit,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject", subject).Msg("trending failed")
		return TrendingResult{}, fmt.Errorf("%w: trending: %v", ErrUpstreamUnavailable, err)
	}

	return TrendingResult{
		Books:   NormalizeAll(res.Docs, TrendingProfile),
		Subject: subject,
		Total:   res.NumFound,
	}, nil
}

// Recommendations queries one subject chosen at random from the comma
// separated list.
func (s *Service) Recommendations(ctx context.Context, subjects string) (RecommendationResult, error) {
	list := ParseSubjects(subjects)
	if len(list) == 0 {
		return RecommendationResult{}, fmt.Errorf("%w: subjects parameter is required", ErrInvalidRequest)
	}
	subject := list[s.chooser.IntN(len(list))]

	res, err := s.upstream.Search(ctx, openlibrary.SearchParams{
		Operation: "recommendations",
		Field:     "subject",
		Value:     subject,
		Sort:      sortByRating,
		Limit:     DefaultRecommendationsLimit,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject", subject).Msg("recommendations failed")
		return RecommendationResult{}, fmt.Errorf("%w: recommendations: %v", ErrUpstreamUnavailable, err)
	}

	return RecommendationResult{
		Books:          NormalizeAll(res.Docs, RecommendationProfile),
		BasedOnSubject: subject,
	}, nil
}

// ParseSubjects splits on commas, trims, and drops blank entries.
func ParseSubjects(subjects string) []string {
	var out []string
	for _, part := range strings.Split(subjects, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
