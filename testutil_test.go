package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

// fakeStore is an in-memory store with the same observable semantics as the
// MySQL-backed one: one rating row per (user, song), idempotent playlist
// membership, substring city filter, newest-first ordering.
type fakeStore struct {
	mu            sync.Mutex
	nextID        int
	users         map[int]UserRow
	songs         map[int]SongRow
	ratings       []RatingRow
	playlists     map[int]PlaylistRow
	playlistSongs []PlaylistSongRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[int]UserRow{},
		songs:     map[int]SongRow{},
		playlists: map[int]PlaylistRow{},
	}
}

func (f *fakeStore) newID() int {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) UserByID(_ context.Context, id int) (*UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (*UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertUser(_ context.Context, name, email, passwordHash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return 0, errEmailTaken
		}
	}
	id := f.newID()
	f.users[id] = UserRow{ID: id, Name: name, Email: email, PasswordHash: passwordHash}
	return id, nil
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func (f *fakeStore) avgRating(songID int) float64 {
	sum, n := 0, 0
	for _, r := range f.ratings {
		if r.SongID == songID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round1(float64(sum) / float64(n))
}

func (f *fakeStore) withRating(s SongRow) SongWithRating {
	return SongWithRating{SongRow: s, AvgRating: f.avgRating(s.ID)}
}

func sortNewestFirst(songs []SongWithRating) {
	sort.Slice(songs, func(i, j int) bool {
		if songs[i].CreatedAt.Equal(songs[j].CreatedAt) {
			return songs[i].ID > songs[j].ID
		}
		return songs[i].CreatedAt.After(songs[j].CreatedAt)
	})
}

func (f *fakeStore) ListSongs(_ context.Context, cityFilter string) ([]SongWithRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SongWithRating
	for _, s := range f.songs {
		if cityFilter != "" && !strings.Contains(strings.ToLower(s.City), strings.ToLower(cityFilter)) {
			continue
		}
		out = append(out, f.withRating(s))
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakeStore) SongByID(_ context.Context, id int) (*SongRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.songs[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStore) SongWithRatingByID(_ context.Context, id int) (*SongWithRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.songs[id]; ok {
		sw := f.withRating(s)
		return &sw, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertSong(_ context.Context, title, city, filePath string, userID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.songs[id] = SongRow{
		ID:        id,
		Title:     title,
		City:      city,
		FilePath:  nullString(filePath),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	return id, nil
}

func (f *fakeStore) UpdateSong(_ context.Context, id int, title, city string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.songs[id]
	if !ok {
		return nil
	}
	s.Title = title
	s.City = city
	f.songs[id] = s
	return nil
}

func (f *fakeStore) DeleteSong(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.songs, id)
	kept := f.ratings[:0]
	for _, r := range f.ratings {
		if r.SongID != id {
			kept = append(kept, r)
		}
	}
	f.ratings = kept
	keptPS := f.playlistSongs[:0]
	for _, ps := range f.playlistSongs {
		if ps.SongID != id {
			keptPS = append(keptPS, ps)
		}
	}
	f.playlistSongs = keptPS
	return nil
}

func (f *fakeStore) UpsertRating(_ context.Context, userID, songID, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.ratings {
		if r.UserID == userID && r.SongID == songID {
			f.ratings[i].Rating = rating
			return nil
		}
	}
	f.ratings = append(f.ratings, RatingRow{UserID: userID, SongID: songID, Rating: rating})
	return nil
}

func (f *fakeStore) PlaylistsByUser(_ context.Context, userID int) ([]PlaylistRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PlaylistRow
	for _, p := range f.playlists {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) PlaylistByIDAndUser(_ context.Context, id, userID int) (*PlaylistRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.playlists[id]; ok && p.UserID == userID {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertPlaylist(_ context.Context, name string, userID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.playlists[id] = PlaylistRow{ID: id, Name: name, UserID: userID}
	return id, nil
}

func (f *fakeStore) DeletePlaylist(_ context.Context, id, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok || p.UserID != userID {
		return nil
	}
	delete(f.playlists, id)
	kept := f.playlistSongs[:0]
	for _, ps := range f.playlistSongs {
		if ps.PlaylistID != id {
			kept = append(kept, ps)
		}
	}
	f.playlistSongs = kept
	return nil
}

func (f *fakeStore) PlaylistSongs(_ context.Context, playlistID int) ([]SongWithRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SongWithRating
	for _, ps := range f.playlistSongs {
		if ps.PlaylistID != playlistID {
			continue
		}
		if s, ok := f.songs[ps.SongID]; ok {
			out = append(out, f.withRating(s))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakeStore) AddPlaylistSong(_ context.Context, playlistID, songID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ps := range f.playlistSongs {
		if ps.PlaylistID == playlistID && ps.SongID == songID {
			return nil
		}
	}
	f.playlistSongs = append(f.playlistSongs, PlaylistSongRow{PlaylistID: playlistID, SongID: songID})
	return nil
}

func (f *fakeStore) RemovePlaylistSong(_ context.Context, playlistID, songID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.playlistSongs[:0]
	for _, ps := range f.playlistSongs {
		if !(ps.PlaylistID == playlistID && ps.SongID == songID) {
			kept = append(kept, ps)
		}
	}
	f.playlistSongs = kept
	return nil
}

// seed helpers, lock-free because tests seed before serving requests

func (f *fakeStore) addUser(t *testing.T, name, email, password string) int {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = generatePasswordHash(password)
		if err != nil {
			t.Fatalf("generatePasswordHash: %v", err)
		}
	}
	id, err := f.InsertUser(context.Background(), name, email, hash)
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	return id
}

func (f *fakeStore) addSong(t *testing.T, title, city, filePath string, userID int, createdAt time.Time) int {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.songs[id] = SongRow{
		ID:        id,
		Title:     title,
		City:      city,
		FilePath:  nullString(filePath),
		UserID:    userID,
		CreatedAt: createdAt,
	}
	return id
}

func (f *fakeStore) addPlaylist(t *testing.T, name string, userID int) int {
	t.Helper()
	id, err := f.InsertPlaylist(context.Background(), name, userID)
	if err != nil {
		t.Fatalf("InsertPlaylist: %v", err)
	}
	return id
}

// recordRenderer captures the last rendered view so tests can assert on the
// template name and its data payload.
type recordRenderer struct {
	name string
	data interface{}
}

func (r *recordRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	r.name = name
	r.data = data
	_, err := io.WriteString(w, name)
	return err
}

type testEnv struct {
	srv *server
	e   *echo.Echo
	st  *fakeStore
	rnd *recordRenderer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newFakeStore()
	blobs, err := newFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("newFileStore: %v", err)
	}
	srv := &server{
		store:    st,
		blobs:    blobs,
		sessions: sessions.NewCookieStore([]byte("test-secret")),
	}
	e := newEcho(srv)
	rnd := &recordRenderer{}
	e.Renderer = rnd
	return &testEnv{srv: srv, e: e, st: st, rnd: rnd}
}

// sessionCookie fabricates a logged-in session cookie for the given user id.
func (env *testEnv) sessionCookie(t *testing.T, userID int) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess, err := env.srv.sessions.New(req, sessionCookieName)
	if err != nil {
		t.Fatalf("sessions.New: %v", err)
	}
	sess.Values[sessionUserKey] = userID
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("session Save: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie issued")
	}
	return cookies[0]
}

func (env *testEnv) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) postForm(target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// postUpload sends a multipart song upload with the given audio part.
func (env *testEnv) postUpload(t *testing.T, title, city, filename, contentType string, content []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("title", title); err != nil {
		t.Fatalf("WriteField title: %v", err)
	}
	if err := w.WriteField("city", city); err != nil {
		t.Fatalf("WriteField city: %v", err)
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("part Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/songs", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}
