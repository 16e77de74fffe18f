// Package recommend turns a favorites collection into book recommendations.
package recommend

import (
	"context"
	"strings"

	"bookfinder/internal/catalog"
	"bookfinder/internal/favorites"
	"bookfinder/internal/logging"
)

// MaxSubjects caps how many distinct subjects are sent to the gateway.
const MaxSubjects = 5

// Recommender is the gateway's recommendations operation.
type Recommender interface {
	Recommendations(ctx context.Context, subjects string) (catalog.RecommendationResult, error)
}

// DeriveSubjects flattens the favorites' subjects in order, skipping blanks
// and repeats, and keeps the first MaxSubjects.
func DeriveSubjects(favs []favorites.FavoriteBook) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range favs {
		for _, s := range f.Subjects {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
			if len(out) == MaxSubjects {
				return out
			}
		}
	}
	return out
}

// Result is one derived recommendation set.
type Result struct {
	Books          []catalog.Book
	BasedOnSubject string
}

type Deriver struct {
	gateway Recommender
}

func NewDeriver(gateway Recommender) *Deriver {
	return &Deriver{gateway: gateway}
}

// Derive fetches recommendations for favs and drops books already saved.
// With no usable subjects it returns an empty set without calling the
// gateway.
func (d *Deriver) Derive(ctx context.Context, favs []favorites.FavoriteBook) (Result, error) {
	subjects := DeriveSubjects(favs)
	if len(subjects) == 0 {
		return Result{Books: []catalog.Book{}}, nil
	}

	res, err := d.gateway.Recommendations(ctx, strings.Join(subjects, ","))
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Strs("subjects", subjects).Msg("failed to load recommendations")
		return Result{Books: []catalog.Book{}}, err
	}

	return Result{
		Books:          Exclude(res.Books, favorites.IDs(favs)),
		BasedOnSubject: res.BasedOnSubject,
	}, nil
}

// Exclude returns the books whose id is not in ids.
func Exclude(books []catalog.Book, ids map[string]struct{}) []catalog.Book {
	out := make([]catalog.Book, 0, len(books))
	for _, b := range books {
		if _, ok := ids[b.ID]; !ok {
			out = append(out, b)
		}
	}
	return out
}
