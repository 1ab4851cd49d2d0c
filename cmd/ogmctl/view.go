package main

import "github.com/CaliLuke/go-cypherogm/internal/bookstore"

// bookView is the acyclic JSON shape of a loaded book.
type bookView struct {
	Id       int64         `json:"id"`
	Name     string        `json:"name"`
	Year     int           `json:"year,omitempty"`
	Author   string        `json:"author,omitempty"`
	Chapters []chapterView `json:"chapters"`
}

type chapterView struct {
	Id     int64  `json:"id"`
	Number int    `json:"number"`
	Name   string `json:"name"`
}

func bookViews(books []*bookstore.Book) []bookView {
	out := make([]bookView, 0, len(books))
	for _, b := range books {
		v := bookView{Id: b.Id, Name: b.Name, Year: b.Year, Chapters: []chapterView{}}
		if b.Author != nil {
			v.Author = b.Author.Name
		}
		for _, c := range b.Chapters {
			v.Chapters = append(v.Chapters, chapterView{Id: c.Id, Number: c.Number, Name: c.Name})
		}
		out = append(out, v)
	}
	return out
}
