package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// mysqlErrDupEntry is returned on unique key violations.
const mysqlErrDupEntry = 1062

// errEmailTaken reports a signup against an already registered email.
var errEmailTaken = fmt.Errorf("email already registered")

// store is everything the handlers need from persistence. Lookups return
// (nil, nil) when no row matches.
type store interface {
	UserByID(ctx context.Context, id int) (*UserRow, error)
	UserByEmail(ctx context.Context, email string) (*UserRow, error)
	InsertUser(ctx context.Context, name, email, passwordHash string) (int, error)

	ListSongs(ctx context.Context, cityFilter string) ([]SongWithRating, error)
	SongByID(ctx context.Context, id int) (*SongRow, error)
	SongWithRatingByID(ctx context.Context, id int) (*SongWithRating, error)
	InsertSong(ctx context.Context, title, city, filePath string, userID int) (int, error)
	UpdateSong(ctx context.Context, id int, title, city string) error
	DeleteSong(ctx context.Context, id int) error
	UpsertRating(ctx context.Context, userID, songID, rating int) error

	PlaylistsByUser(ctx context.Context, userID int) ([]PlaylistRow, error)
	PlaylistByIDAndUser(ctx context.Context, id, userID int) (*PlaylistRow, error)
	InsertPlaylist(ctx context.Context, name string, userID int) (int, error)
	DeletePlaylist(ctx context.Context, id, userID int) error
	PlaylistSongs(ctx context.Context, playlistID int) ([]SongWithRating, error)
	AddPlaylistSong(ctx context.Context, playlistID, songID int) error
	RemovePlaylistSong(ctx context.Context, playlistID, songID int) error
}

type dbStore struct {
	db *sqlx.DB
}

func newDBStore(db *sqlx.DB) *dbStore {
	return &dbStore{db: db}
}

func (s *dbStore) UserByID(ctx context.Context, id int) (*UserRow, error) {
	var row UserRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM users WHERE `id` = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error Get user by id=%d: %w", id, err)
	}
	return &row, nil
}

func (s *dbStore) UserByEmail(ctx context.Context, email string) (*UserRow, error) {
	var row UserRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM users WHERE `email` = ?", email); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error Get user by email=%s: %w", email, err)
	}
	return &row, nil
}

func (s *dbStore) InsertUser(ctx context.Context, name, email, passwordHash string) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		"INSERT INTO users (`name`, `email`, `password_hash`) VALUES (?, ?, ?)",
		name, email, passwordHash,
	)
	if err != nil {
		if merr, ok := err.(*mysql.MySQLError); ok && merr.Number == mysqlErrDupEntry {
			return 0, errEmailTaken
		}
		return 0, fmt.Errorf("error Insert user by email=%s: %w", email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error LastInsertId for user email=%s: %w", email, err)
	}
	return int(id), nil
}

const songWithRatingColumns = "s.*, COALESCE(ROUND(AVG(r.rating), 1), 0) AS avg_rating"

func (s *dbStore) ListSongs(ctx context.Context, cityFilter string) ([]SongWithRating, error) {
	query := "SELECT " + songWithRatingColumns + " FROM songs s" +
		" LEFT JOIN ratings r ON s.id = r.song_id"
	args := []interface{}{}
	if cityFilter != "" {
		query += " WHERE s.city LIKE ?"
		args = append(args, "%"+cityFilter+"%")
	}
	query += " GROUP BY s.id ORDER BY s.created_at DESC"

	var songs []SongWithRating
	if err := s.db.SelectContext(ctx, &songs, query, args...); err != nil {
		return nil, fmt.Errorf("error Select songs by city=%s: %w", cityFilter, err)
	}
	return songs, nil
}

func (s *dbStore) SongByID(ctx context.Context, id int) (*SongRow, error) {
	var row SongRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM songs WHERE `id` = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error Get song by id=%d: %w", id, err)
	}
	return &row, nil
}

func (s *dbStore) SongWithRatingByID(ctx context.Context, id int) (*SongWithRating, error) {
	var row SongWithRating
	if err := s.db.GetContext(
		ctx,
		&row,
		"SELECT "+songWithRatingColumns+" FROM songs s"+
			" LEFT JOIN ratings r ON s.id = r.song_id WHERE s.id = ? GROUP BY s.id",
		id,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error Get song with rating by id=%d: %w", id, err)
	}
	return &row, nil
}

func (s *dbStore) InsertSong(ctx context.Context, title, city, filePath string, userID int) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		"INSERT INTO songs (`title`, `city`, `file_path`, `user_id`) VALUES (?, ?, ?, ?)",
		title, city, filePath, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("error Insert song by title=%s, city=%s, user_id=%d: %w", title, city, userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error LastInsertId for song title=%s: %w", title, err)
	}
	return int(id), nil
}

func (s *dbStore) UpdateSong(ctx context.Context, id int, title, city string) error {
	if _, err := s.db.ExecContext(
		ctx,
		"UPDATE songs SET `title` = ?, `city` = ? WHERE `id` = ?",
		title, city, id,
	); err != nil {
		return fmt.Errorf("error Update song by id=%d, title=%s, city=%s: %w", id, title, city, err)
	}
	return nil
}

// DeleteSong removes the song row and its dependent rating and playlist
// membership rows. No transaction: each statement is atomic on its own and
// the cleanup order makes a partial failure leave nothing orphaned that a
// retry would not fix.
func (s *dbStore) DeleteSong(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ratings WHERE `song_id` = ?", id); err != nil {
		return fmt.Errorf("error Delete ratings by song_id=%d: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM playlist_songs WHERE `song_id` = ?", id); err != nil {
		return fmt.Errorf("error Delete playlist_songs by song_id=%d: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM songs WHERE `id` = ?", id); err != nil {
		return fmt.Errorf("error Delete song by id=%d: %w", id, err)
	}
	return nil
}

// UpsertRating is a single atomic statement keyed by the (user_id, song_id)
// unique index, so concurrent identical requests cannot produce two rows.
func (s *dbStore) UpsertRating(ctx context.Context, userID, songID, rating int) error {
	if _, err := s.db.ExecContext(
		ctx,
		"INSERT INTO ratings (`user_id`, `song_id`, `rating`) VALUES (?, ?, ?)"+
			" ON DUPLICATE KEY UPDATE `rating` = VALUES(`rating`)",
		userID, songID, rating,
	); err != nil {
		return fmt.Errorf("error Upsert rating by user_id=%d, song_id=%d, rating=%d: %w", userID, songID, rating, err)
	}
	return nil
}

func (s *dbStore) PlaylistsByUser(ctx context.Context, userID int) ([]PlaylistRow, error) {
	var playlists []PlaylistRow
	if err := s.db.SelectContext(
		ctx,
		&playlists,
		"SELECT * FROM playlists WHERE `user_id` = ? ORDER BY `id` DESC",
		userID,
	); err != nil {
		return nil, fmt.Errorf("error Select playlists by user_id=%d: %w", userID, err)
	}
	return playlists, nil
}

func (s *dbStore) PlaylistByIDAndUser(ctx context.Context, id, userID int) (*PlaylistRow, error) {
	var row PlaylistRow
	if err := s.db.GetContext(
		ctx,
		&row,
		"SELECT * FROM playlists WHERE `id` = ? AND `user_id` = ?",
		id, userID,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error Get playlist by id=%d, user_id=%d: %w", id, userID, err)
	}
	return &row, nil
}

func (s *dbStore) InsertPlaylist(ctx context.Context, name string, userID int) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		"INSERT INTO playlists (`name`, `user_id`) VALUES (?, ?)",
		name, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("error Insert playlist by name=%s, user_id=%d: %w", name, userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error LastInsertId for playlist name=%s: %w", name, err)
	}
	return int(id), nil
}

// DeletePlaylist is scoped to the owner; deleting a non-owned or missing id
// affects zero rows and is not an error.
func (s *dbStore) DeletePlaylist(ctx context.Context, id, userID int) error {
	res, err := s.db.ExecContext(
		ctx,
		"DELETE FROM playlists WHERE `id` = ? AND `user_id` = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("error Delete playlist by id=%d, user_id=%d: %w", id, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected for playlist id=%d: %w", id, err)
	}
	if affected == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM playlist_songs WHERE `playlist_id` = ?", id); err != nil {
		return fmt.Errorf("error Delete playlist_songs by playlist_id=%d: %w", id, err)
	}
	return nil
}

func (s *dbStore) PlaylistSongs(ctx context.Context, playlistID int) ([]SongWithRating, error) {
	var songs []SongWithRating
	if err := s.db.SelectContext(
		ctx,
		&songs,
		"SELECT "+songWithRatingColumns+" FROM playlist_songs ps"+
			" JOIN songs s ON ps.song_id = s.id"+
			" LEFT JOIN ratings r ON r.song_id = s.id"+
			" WHERE ps.playlist_id = ?"+
			" GROUP BY s.id ORDER BY s.created_at DESC",
		playlistID,
	); err != nil {
		return nil, fmt.Errorf("error Select playlist songs by playlist_id=%d: %w", playlistID, err)
	}
	return songs, nil
}

// AddPlaylistSong relies on the composite primary key: duplicate adds are
// silently ignored.
func (s *dbStore) AddPlaylistSong(ctx context.Context, playlistID, songID int) error {
	if _, err := s.db.ExecContext(
		ctx,
		"INSERT IGNORE INTO playlist_songs (`playlist_id`, `song_id`) VALUES (?, ?)",
		playlistID, songID,
	); err != nil {
		return fmt.Errorf("error Insert playlist_song by playlist_id=%d, song_id=%d: %w", playlistID, songID, err)
	}
	return nil
}

func (s *dbStore) RemovePlaylistSong(ctx context.Context, playlistID, songID int) error {
	if _, err := s.db.ExecContext(
		ctx,
		"DELETE FROM playlist_songs WHERE `playlist_id` = ? AND `song_id` = ?",
		playlistID, songID,
	); err != nil {
		return fmt.Errorf("error Delete playlist_song by playlist_id=%d, song_id=%d: %w", playlistID, songID, err)
	}
	return nil
}
