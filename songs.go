package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxUploadBytes = 20 << 20 // 20 MiB

// GET /songs?city=

func (s *server) getSongs(c echo.Context) error {
	city := strings.TrimSpace(c.QueryParam("city"))
	songs, err := s.store.ListSongs(c.Request().Context(), city)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error ListSongs: %w", err))
	}
	return c.Render(http.StatusOK, "songs_index.html", songsViewData{
		viewData: viewData{User: currentUser(c)},
		Songs:    songs,
		City:     city,
	})
}

// GET /songs/new

func (s *server) getSongNew(c echo.Context) error {
	return c.Render(http.StatusOK, "song_new.html", viewData{User: currentUser(c)})
}

// POST /songs
// Multipart form: title, city and an "audio" file part. Non-audio or
// oversized uploads are rejected before anything is written.

func (s *server) postSongs(c echo.Context) error {
	user := currentUser(c)
	title := c.FormValue("title")
	city := c.FormValue("city")

	fh, err := c.FormFile("audio")
	if err != nil {
		return c.Redirect(http.StatusFound, "/songs/new")
	}
	contentType := fh.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "audio/") {
		return c.Redirect(http.StatusFound, "/songs/new")
	}
	if fh.Size > maxUploadBytes {
		return c.Redirect(http.StatusFound, "/songs/new")
	}

	src, err := fh.Open()
	if err != nil {
		return s.internalError(c, fmt.Errorf("error open uploaded file: %w", err))
	}
	defer src.Close()

	filePath, err := s.blobs.Save(fh.Filename, src)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error save blob: %w", err))
	}

	if _, err := s.store.InsertSong(c.Request().Context(), title, city, filePath, user.ID); err != nil {
		// The row never landed; clean up the blob so it does not leak.
		if derr := s.blobs.Delete(filePath); derr != nil {
			c.Logger().Errorf("error delete blob after failed insert: %s", derr)
		}
		return s.internalError(c, fmt.Errorf("error InsertSong: %w", err))
	}

	return c.Redirect(http.StatusFound, "/songs")
}

// GET /songs/:id

func (s *server) getSong(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "Song not found")
	}
	song, err := s.store.SongWithRatingByID(c.Request().Context(), id)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error SongWithRatingByID: %w", err))
	}
	if song == nil {
		return c.String(http.StatusNotFound, "Song not found")
	}
	return c.Render(http.StatusOK, "song_show.html", songViewData{
		viewData: viewData{User: currentUser(c)},
		Song:     song,
	})
}

// ownedSong loads a song and enforces that the requester owns it. Missing
// rows and foreign rows are both reported as not found.
func (s *server) ownedSong(c echo.Context) (*SongRow, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, nil
	}
	song, err := s.store.SongByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if song == nil || song.UserID != currentUser(c).ID {
		return nil, nil
	}
	return song, nil
}

// GET /songs/:id/edit

func (s *server) getSongEdit(c echo.Context) error {
	song, err := s.ownedSong(c)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error load song for edit: %w", err))
	}
	if song == nil {
		return c.String(http.StatusNotFound, "Song not found")
	}
	return c.Render(http.StatusOK, "song_edit.html", songEditViewData{
		viewData: viewData{User: currentUser(c)},
		Song:     song,
	})
}

// POST /songs/:id/edit

func (s *server) postSongEdit(c echo.Context) error {
	song, err := s.ownedSong(c)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error load song for edit: %w", err))
	}
	if song == nil {
		return c.String(http.StatusNotFound, "Song not found")
	}
	if err := s.store.UpdateSong(c.Request().Context(), song.ID, c.FormValue("title"), c.FormValue("city")); err != nil {
		return s.internalError(c, fmt.Errorf("error UpdateSong: %w", err))
	}
	return c.Redirect(http.StatusFound, "/songs")
}

// POST /songs/:id/delete

func (s *server) postSongDelete(c echo.Context) error {
	song, err := s.ownedSong(c)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error load song for delete: %w", err))
	}
	if song == nil {
		return c.String(http.StatusNotFound, "Song not found")
	}

	// Blob removal is best effort: a failure is logged and never blocks the
	// row deletion.
	if song.FilePath.Valid {
		if err := s.blobs.Delete(song.FilePath.String); err != nil {
			c.Logger().Errorf("error delete blob %s: %s", song.FilePath.String, err)
		}
	}

	if err := s.store.DeleteSong(c.Request().Context(), song.ID); err != nil {
		return s.internalError(c, fmt.Errorf("error DeleteSong: %w", err))
	}
	return c.Redirect(http.StatusFound, "/songs")
}

// POST /songs/:id/rate
// Upserts the requester's rating. Out-of-range or non-numeric values are
// silently redirected back to the song list.

func (s *server) postSongRate(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "Song not found")
	}
	song, err := s.store.SongByID(c.Request().Context(), id)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error SongByID at rate: %w", err))
	}
	if song == nil {
		// Deleted since the list page was rendered.
		return c.String(http.StatusNotFound, "Song not found")
	}
	rating, err := strconv.Atoi(c.FormValue("rating"))
	if err != nil || rating < 1 || rating > 5 {
		return c.Redirect(http.StatusFound, "/songs")
	}
	if err := s.store.UpsertRating(c.Request().Context(), currentUser(c).ID, id, rating); err != nil {
		return s.internalError(c, fmt.Errorf("error UpsertRating: %w", err))
	}
	return c.Redirect(http.StatusFound, "/songs")
}
