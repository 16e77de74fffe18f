package favorites

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

type ExportedBook struct {
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	PublishedDate *int      `json:"publishedDate"`
	Subjects      []string  `json:"subjects"`
	DateAdded     time.Time `json:"dateAdded"`
}

type ExportDocument struct {
	ExportDate time.Time      `json:"exportDate"`
	TotalBooks int            `json:"totalBooks"`
	Books      []ExportedBook `json:"books"`
}

func Export(favs []FavoriteBook, now time.Time) ExportDocument {
	doc := ExportDocument{
		ExportDate: now.UTC(),
		TotalBooks: len(favs),
		Books:      make([]ExportedBook, 0, len(favs)),
	}
	for _, f := range favs {
		doc.Books = append(doc.Books, ExportedBook{
			Title:         f.Title,
			Authors:       f.Authors,
			PublishedDate: f.PublishedDate,
			Subjects:      f.Subjects,
			DateAdded:     f.DateAdded,
		})
	}
	return doc
}

// ExportFilename is book-favorites-YYYY-MM-DD.json for the UTC date of now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("book-favorites-%s.json", now.UTC().Format("2006-01-02"))
}

// WriteExport writes doc indented by two spaces.
func WriteExport(w io.Writer, doc ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ExportToDir writes the export file into dir and returns its path.
func ExportToDir(dir string, favs []FavoriteBook, now time.Time) (string, error) {
	path := filepath.Join(dir, ExportFilename(now))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteExport(f, Export(favs, now)); err != nil {
		f.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
