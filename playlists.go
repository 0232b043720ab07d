package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// GET /playlists

func (s *server) getPlaylists(c echo.Context) error {
	playlists, err := s.store.PlaylistsByUser(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error PlaylistsByUser: %w", err))
	}
	return c.Render(http.StatusOK, "playlists_index.html", playlistsViewData{
		viewData:  viewData{User: currentUser(c)},
		Playlists: playlists,
	})
}

// POST /playlists

func (s *server) postPlaylists(c echo.Context) error {
	name := c.FormValue("name")
	if _, err := s.store.InsertPlaylist(c.Request().Context(), name, currentUser(c).ID); err != nil {
		return s.internalError(c, fmt.Errorf("error InsertPlaylist: %w", err))
	}
	return c.Redirect(http.StatusFound, "/playlists")
}

// GET /playlists/:id
// Not found covers both a missing id and a playlist owned by someone else.

func (s *server) getPlaylist(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "Playlist not found")
	}
	ctx := c.Request().Context()
	playlist, err := s.store.PlaylistByIDAndUser(ctx, id, currentUser(c).ID)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error PlaylistByIDAndUser: %w", err))
	}
	if playlist == nil {
		return c.String(http.StatusNotFound, "Playlist not found")
	}

	songs, err := s.store.PlaylistSongs(ctx, playlist.ID)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error PlaylistSongs: %w", err))
	}

	return c.Render(http.StatusOK, "playlist_show.html", playlistViewData{
		viewData: viewData{User: currentUser(c)},
		Playlist: playlist,
		Songs:    songs,
	})
}

// POST /playlists/:id/delete
// Deleting a non-owned or missing playlist affects zero rows; the redirect
// is the same either way.

func (s *server) postPlaylistDelete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/playlists")
	}
	if err := s.store.DeletePlaylist(c.Request().Context(), id, currentUser(c).ID); err != nil {
		return s.internalError(c, fmt.Errorf("error DeletePlaylist: %w", err))
	}
	return c.Redirect(http.StatusFound, "/playlists")
}

// POST /playlists/:id/add-song

func (s *server) postPlaylistAddSong(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/playlists")
	}
	return s.addSongToPlaylist(c, id)
}

// POST /playlists/add-song
// Variant that takes the playlist id as a form field.

func (s *server) postPlaylistAddSongForm(c echo.Context) error {
	id, err := strconv.Atoi(c.FormValue("playlist_id"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/playlists")
	}
	return s.addSongToPlaylist(c, id)
}

func (s *server) addSongToPlaylist(c echo.Context, playlistID int) error {
	songID, err := strconv.Atoi(c.FormValue("song_id"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/playlists/"+strconv.Itoa(playlistID))
	}
	if err := s.store.AddPlaylistSong(c.Request().Context(), playlistID, songID); err != nil {
		return s.internalError(c, fmt.Errorf("error AddPlaylistSong: %w", err))
	}
	return c.Redirect(http.StatusFound, "/playlists/"+strconv.Itoa(playlistID))
}

// POST /playlists/:id/remove-song
// Removing a pair that was never added is a no-op.

func (s *server) postPlaylistRemoveSong(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/playlists")
	}
	songID, err := strconv.Atoi(c.FormValue("song_id"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/playlists/"+strconv.Itoa(id))
	}
	if err := s.store.RemovePlaylistSong(c.Request().Context(), id, songID); err != nil {
		return s.internalError(c, fmt.Errorf("error RemovePlaylistSong: %w", err))
	}
	return c.Redirect(http.StatusFound, "/playlists/"+strconv.Itoa(id))
}
