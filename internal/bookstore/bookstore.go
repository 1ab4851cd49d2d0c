// Package bookstore is a small sample domain used by ogmctl and the
// integration tests.
package bookstore

import (
	"fmt"

	"github.com/CaliLuke/go-cypherogm/ogm"
)

// Book is a store-assigned node owning its chapters.
type Book struct {
	Id       int64
	Name     string
	Year     int
	Chapters []*Chapter
	Author   *Author
}

// Chapter points back to its book; Book.Chapters and Chapter.Book are
// inverse navigations.
type Chapter struct {
	Id     int64
	Name   string
	Number int
	Book   *Book
}

// Author is keyed by name.
type Author struct {
	Name        string `ogm:",key"`
	Nationality string
}

// Review points at a book that has no navigation back to it.
type Review struct {
	Id     string
	Rating int
	Book   *Book
}

// Register registers the bookstore types and their relations. Calling it
// again is a no-op.
func Register() error {
	if err := ogm.Register[Book](); err != nil {
		return fmt.Errorf("register Book: %w", err)
	}
	if err := ogm.Register[Chapter](); err != nil {
		return fmt.Errorf("register Chapter: %w", err)
	}
	if err := ogm.Register[Author](); err != nil {
		return fmt.Errorf("register Author: %w", err)
	}
	if err := ogm.Register[Review](); err != nil {
		return fmt.Errorf("register Review: %w", err)
	}
	if err := ogm.RegisterRelation[Book, Chapter]("x => x.Chapters", "x => x.Book"); err != nil {
		return err
	}
	return ogm.RegisterRelation[Book, Review]("", "Book")
}

// Dune returns a book with three chapters and an author, wired both ways.
func Dune() *Book {
	b := &Book{
		Name:   "Dune",
		Year:   1965,
		Author: &Author{Name: "Frank Herbert", Nationality: "American"},
	}
	for i, name := range []string{"Book One: Dune", "Book Two: Muad'Dib", "Book Three: The Prophet"} {
		b.Chapters = append(b.Chapters, &Chapter{Name: name, Number: i + 1, Book: b})
	}
	return b
}

// ChaptersQuery returns the query loading every book with its chapters,
// each chapter carrying its book back.
func ChaptersQuery() (*ogm.Query[Book], error) {
	q, err := ogm.NewQuery[Book]()
	if err != nil {
		return nil, err
	}
	chapters, err := ogm.IncludeCollection[Chapter](q.Root(), "x => x.Chapters")
	if err != nil {
		return nil, err
	}
	if _, err := ogm.Include[Book](chapters, "x => x.Book"); err != nil {
		return nil, err
	}
	if _, err := ogm.Include[Author](q.Root(), "Author"); err != nil {
		return nil, err
	}
	return q, nil
}
