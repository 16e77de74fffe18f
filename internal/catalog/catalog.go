package catalog

import (
	"math"
	"strings"

	"bookfinder/internal/platform/openlibrary"
)

const (
	UnknownAuthor = "Unknown Author"
	NoDescription = "No description available"
	DefaultLang   = "en"
)

// Book is the normalized shape returned by every gateway operation.
// Nullable fields are pointers so they encode as JSON null.
type Book struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description"`
	Thumbnail     *string  `json:"thumbnail"`
	PublishedDate *int     `json:"publishedDate"`
	Subjects      []string `json:"subjects"`
	Rating        *float64 `json:"rating"`
	PageCount     *int     `json:"pageCount,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	Language      string   `json:"language,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
}

// Profile selects which optional fields a call site keeps and how many
// subjects survive truncation.
type Profile struct {
	SubjectLimit int
	PagePublish  bool // pageCount, publisher
	Edition      bool // isbn, language
}

var (
	SearchProfile         = Profile{SubjectLimit: 5, PagePublish: true, Edition: true}
	TrendingProfile       = Profile{SubjectLimit: 3, PagePublish: true}
	RecommendationProfile = Profile{SubjectLimit: 3}
)

// Normalize maps one upstream record to a Book.
func Normalize(doc openlibrary.Doc, p Profile) Book {
	b := Book{
		ID:            doc.Key,
		Title:         doc.Title,
		Authors:       doc.AuthorNames,
		Description:   strings.Join(doc.FirstSentence, " "),
		PublishedDate: doc.FirstPublishYear,
		Subjects:      truncate(doc.Subjects, p.SubjectLimit),
		Rating:        roundRating(doc.RatingsAverage),
	}
	if len(b.Authors) == 0 {
		b.Authors = []string{UnknownAuthor}
	}
	if b.Description == "" {
		b.Description = NoDescription
	}
	if doc.CoverID != nil {
		u := openlibrary.CoverURL(*doc.CoverID)
		b.Thumbnail = &u
	}

	if p.PagePublish {
		b.PageCount = doc.NumberOfPagesMedian
		b.Publisher = first(doc.Publisher)
	}
	if p.Edition {
		b.ISBN = first(doc.ISBN)
		b.Language = first(doc.Language)
		if b.Language == "" {
			b.Language = DefaultLang
		}
	}
	return b
}

// NormalizeAll maps every record; the result is never nil.
func NormalizeAll(docs []openlibrary.Doc, p Profile) []Book {
	books := make([]Book, 0, len(docs))
	for _, doc := range docs {
		books = append(books, Normalize(doc, p))
	}
	return books
}

// roundRating rounds to the nearest tenth. A zero average counts as unrated.
func roundRating(avg *float64) *float64 {
	if avg == nil || *avg == 0 {
		return nil
	}
	r := math.Round(*avg*10) / 10
	return &r
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
