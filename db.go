package main

import (
	"database/sql"
	"time"
)

type UserRow struct {
	ID           int    `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

type SongRow struct {
	ID        int            `db:"id"`
	Title     string         `db:"title"`
	City      string         `db:"city"`
	FilePath  sql.NullString `db:"file_path"`
	UserID    int            `db:"user_id"`
	CreatedAt time.Time      `db:"created_at"`
}

// SongWithRating is a song annotated with its derived average rating.
// avg_rating is computed per query, never stored.
type SongWithRating struct {
	SongRow
	AvgRating float64 `db:"avg_rating"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type RatingRow struct {
	UserID int `db:"user_id"`
	SongID int `db:"song_id"`
	Rating int `db:"rating"`
}

type PlaylistRow struct {
	ID     int    `db:"id"`
	Name   string `db:"name"`
	UserID int    `db:"user_id"`
}

type PlaylistSongRow struct {
	PlaylistID int `db:"playlist_id"`
	SongID     int `db:"song_id"`
}
