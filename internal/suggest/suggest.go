// Package suggest implements type-ahead suggestions for the search box.
package suggest

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"bookfinder/internal/catalog"
	"bookfinder/internal/logging"
)

const (
	DebounceDelay  = 300 * time.Millisecond
	MinQueryLength = 2
	Limit          = 5
)

// Searcher is the gateway search operation.
type Searcher interface {
	Search(ctx context.Context, q, searchType string, limit int) (catalog.SearchResult, error)
}

// Extract maps books to suggestion strings for searchType, dropping repeats
// and blanks, and keeps at most Limit.
func Extract(books []catalog.Book, searchType, query string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, b := range books {
		s := pick(b, searchType, query)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == Limit {
			break
		}
	}
	return out
}

func pick(b catalog.Book, searchType, query string) string {
	switch searchType {
	case catalog.TypeAuthor:
		if len(b.Authors) > 0 && b.Authors[0] != "" {
			return b.Authors[0]
		}
		return catalog.UnknownAuthor
	case catalog.TypeSubject:
		if len(b.Subjects) > 0 && b.Subjects[0] != "" {
			return b.Subjects[0]
		}
		return query
	default:
		return b.Title
	}
}

// ShouldFetch reports whether text is long enough to ask for suggestions.
func ShouldFetch(text string) bool {
	return utf8.RuneCountInString(text) >= MinQueryLength && strings.TrimSpace(text) != ""
}

type Suggester struct {
	search Searcher
}

func NewSuggester(search Searcher) *Suggester {
	return &Suggester{search: search}
}

// Suggest returns suggestions for text. Text that is too short yields an
// empty list without a gateway call.
func (s *Suggester) Suggest(ctx context.Context, text, searchType string) ([]string, error) {
	if !ShouldFetch(text) {
		return []string{}, nil
	}
	res, err := s.search.Search(ctx, text, searchType, Limit)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("type", searchType).Msg("failed to fetch suggestions")
		return []string{}, err
	}
	return Extract(res.Books, searchType, text), nil
}
