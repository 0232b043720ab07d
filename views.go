package main

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

type renderer struct {
	templates *template.Template
}

func newRenderer() *renderer {
	return &renderer{templates: template.Must(template.ParseGlob("views/*.html"))}
}

func (t *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// view data payloads

type viewData struct {
	User *UserRow
}

type songsViewData struct {
	viewData
	Songs []SongWithRating
	City  string
}

type songViewData struct {
	viewData
	Song *SongWithRating
}

type songEditViewData struct {
	viewData
	Song *SongRow
}

type playlistsViewData struct {
	viewData
	Playlists []PlaylistRow
}

type playlistViewData struct {
	viewData
	Playlist *PlaylistRow
	Songs    []SongWithRating
}
