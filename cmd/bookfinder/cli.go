package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"bookfinder/internal/app"
	"bookfinder/internal/bookclient"
	"bookfinder/internal/catalog"
	"bookfinder/internal/config"
	"bookfinder/internal/favorites"
	"bookfinder/internal/suggest"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
)

// session bundles what every command needs. close releases the storage
// backend.
type session struct {
	app    *app.App
	store  *favorites.Store
	out    io.Writer
	asJSON bool
	close  func()
}

type sessionFactory func(c *cli.Context, opts ...app.Option) (*session, error)

func newCLI(cfg config.Client) *cli.App {
	return newCLIWith(cfg, defaultSession(cfg))
}

func newCLIWith(cfg config.Client, open sessionFactory) *cli.App {
	typeFlag := &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Value:   catalog.TypeGeneral,
		Usage:   "search type: general, title, author, subject or isbn",
	}

	return &cli.App{
		Name:  "bookfinder",
		Usage: "search Open Library, keep favorites and get recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: cfg.APIURL, Usage: "gateway base URL"},
			&cli.StringFlag{Name: "storage", Value: cfg.Storage, Usage: "favorites backend: file, redis or postgres"},
			&cli.StringFlag{Name: "storage-dir", Value: cfg.StorageDir, Usage: "directory for the file backend"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "full search",
				ArgsUsage: "<terms...>",
				Flags:     []cli.Flag{typeFlag},
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					s.app.SetSearchType(c.String("type"))
					if err := s.app.Search(c.Context, strings.Join(c.Args().Slice(), " ")); err != nil {
						return err
					}
					return s.printBooks(s.app.Snapshot().Results)
				},
			},
			{
				Name:      "quick",
				Usage:     "subject search, e.g. " + strings.Join(app.QuickSearchSubjects[:3], ", "),
				ArgsUsage: "<subject>",
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					if err := s.app.QuickSearch(c.Context, strings.Join(c.Args().Slice(), " ")); err != nil {
						return err
					}
					return s.printBooks(s.app.Snapshot().Results)
				},
			},
			{
				Name:  "trending",
				Usage: "highly rated books for a random academic subject",
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					if err := s.app.LoadTrending(c.Context); err != nil {
						return err
					}
					snap := s.app.Snapshot()
					fmt.Fprintf(s.out, "Trending in %s\n", snap.TrendingSubject)
					return s.printBooks(snap.Trending)
				},
			},
			{
				Name:      "suggest",
				Usage:     "type-ahead suggestions for partial text",
				ArgsUsage: "<text>",
				Flags:     []cli.Flag{typeFlag},
				Action:    suggestAction(open),
			},
			{
				Name:  "recommend",
				Usage: "recommendations based on saved favorites",
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					s.app.LoadFavorites(c.Context)
					snap := s.app.Snapshot()
					if snap.BasedOnSubject != "" {
						fmt.Fprintf(s.out, "Because you like %s\n", snap.BasedOnSubject)
					}
					return s.printBooks(snap.Recommendations)
				},
			},
			favoritesCommand(open, typeFlag),
		},
	}
}

func favoritesCommand(open sessionFactory, typeFlag cli.Flag) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "manage saved books",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "saved books, newest first",
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					favs := favorites.SortedByDateAdded(s.store.Get(c.Context))
					if s.asJSON {
						return s.printJSON(favs)
					}
					fmt.Fprintf(s.out, "You have %d favorite book%s\n", len(favs), plural(len(favs)))
					for _, f := range favs {
						fmt.Fprintf(s.out, "%s  %s by %s (added %s)\n",
							f.ID, f.Title, strings.Join(f.Authors, ", "), f.DateAdded.Local().Format("2006-01-02"))
					}
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "search and save one result",
				ArgsUsage: "<terms...>",
				Flags: []cli.Flag{
					typeFlag,
					&cli.IntFlag{Name: "pick", Value: 1, Usage: "1-based index of the result to save"},
				},
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					s.app.LoadFavorites(c.Context)
					s.app.SetSearchType(c.String("type"))
					if err := s.app.Search(c.Context, strings.Join(c.Args().Slice(), " ")); err != nil {
						return err
					}
					results := s.app.Snapshot().Results
					pick := c.Int("pick")
					if pick < 1 || pick > len(results) {
						return cli.Exit(fmt.Sprintf("no result number %d (%d results)", pick, len(results)), 1)
					}
					book := results[pick-1]
					if err := s.app.AddFavorite(c.Context, book); err != nil {
						return err
					}
					fmt.Fprintf(s.out, "Saved %s (%s)\n", book.Title, book.ID)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a saved book by id",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("remove takes exactly one id", 1)
					}
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					s.app.LoadFavorites(c.Context)
					return s.app.RemoveFavorite(c.Context, c.Args().First())
				},
			},
			{
				Name:  "clear",
				Usage: "remove every saved book",
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					return s.app.ClearFavorites(c.Context)
				},
			},
			{
				Name:  "export",
				Usage: "write book-favorites-YYYY-MM-DD.json",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: ".", Usage: "output directory"},
				},
				Action: func(c *cli.Context) error {
					s, err := open(c)
					if err != nil {
						return err
					}
					defer s.close()
					path, err := favorites.ExportToDir(c.String("dir"), s.store.Get(c.Context), time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintf(s.out, "Exported to %s\n", path)
					return nil
				},
			},
		},
	}
}

// suggestAction replays text one keystroke at a time through the debouncer
// and prints the suggestions fetched for the final text.
func suggestAction(open sessionFactory) cli.ActionFunc {
	return func(c *cli.Context) error {
		fetched := make(chan app.State, 1)
		var armed atomic.Bool

		s, err := open(c, app.WithOnChange(func(st app.State) {
			if !armed.Load() {
				return
			}
			select {
			case fetched <- st:
			default:
			}
		}))
		if err != nil {
			return err
		}
		defer s.close()

		text := []rune(strings.Join(c.Args().Slice(), " "))
		s.app.SetSearchType(c.String("type"))
		for i := range text {
			s.app.TypeSearchText(string(text[:i+1]))
		}
		armed.Store(true)

		ctx, cancel := context.WithTimeout(c.Context, suggest.DebounceDelay+bookclient.DefaultTimeout)
		defer cancel()
		select {
		case st := <-fetched:
			if s.asJSON {
				return s.printJSON(st.Suggestions)
			}
			for _, sug := range st.Suggestions {
				fmt.Fprintln(s.out, sug)
			}
			return nil
		case <-ctx.Done():
			return cli.Exit("timed out waiting for suggestions", 1)
		}
	}
}

func (s *session) printBooks(books []catalog.Book) error {
	if s.asJSON {
		return s.printJSON(books)
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "No books found.")
		return nil
	}
	for i, b := range books {
		line := fmt.Sprintf("%2d. %s by %s", i+1, b.Title, strings.Join(b.Authors, ", "))
		if b.PublishedDate != nil {
			line += " (" + strconv.Itoa(*b.PublishedDate) + ")"
		}
		if b.Rating != nil {
			line += fmt.Sprintf(" ★ %.1f", *b.Rating)
		}
		if s.app.IsFavorite(b.ID) {
			line += " ♥"
		}
		fmt.Fprintf(s.out, "%s\n    %s\n", line, b.ID)
	}
	return nil
}

func (s *session) printJSON(v interface{}) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func defaultSession(cfg config.Client) sessionFactory {
	return func(c *cli.Context, opts ...app.Option) (*session, error) {
		cfg := cfg
		cfg.APIURL = c.String("api-url")
		cfg.Storage = c.String("storage")
		cfg.StorageDir = c.String("storage-dir")

		storage, closeStorage, err := openStorage(c.Context, cfg)
		if err != nil {
			return nil, err
		}
		store := favorites.NewStore(storage)
		gateway := bookclient.New(cfg.APIURL, cfg.APITimeout)
		opts = append([]app.Option{app.WithContext(c.Context), app.WithClock(clock.New())}, opts...)
		a := app.New(gateway, store, opts...)

		return &session{
			app:    a,
			store:  store,
			out:    c.App.Writer,
			asJSON: c.Bool("json"),
			close: func() {
				a.Close()
				closeStorage()
			},
		}, nil
	}
}
