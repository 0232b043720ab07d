package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/srinathgs/mysqlstore"
	"golang.org/x/time/rate"
)

func connectDB(cfg config) (*sqlx.DB, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = cfg.DBHost + ":" + cfg.DBPort
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.DBName = cfg.DBName
	mc.ParseTime = true

	return sqlx.Open("mysql", mc.FormatDSN())
}

func cacheControlPrivate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, "private")
		return next(c)
	}
}

func newEcho(s *server) *echo.Echo {
	e := echo.New()
	e.Logger.SetLevel(log.INFO)

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	// Slightly above the 20 MiB blob cap so the upload handler, not the
	// transport layer, rejects oversized audio with a redirect.
	e.Use(middleware.BodyLimit("21M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(20),
			Burst:     60,
			ExpiresIn: 3 * time.Minute,
		},
	)))
	e.Use(cacheControlPrivate)
	e.Use(s.loadUser)

	e.GET("/", s.getHome)
	e.GET("/login", s.getLoginPage)
	e.GET("/signup", s.getSignupPage)
	e.GET("/upload", s.getUploadPage)
	e.GET("/test", s.getTest)

	e.POST("/signup", s.postSignup)
	e.POST("/login", s.postLogin)
	e.POST("/logout", s.postLogout)

	e.GET("/songs", s.getSongs)
	e.GET("/songs/new", s.getSongNew, s.loginRequired)
	e.POST("/songs", s.postSongs, s.loginRequired)
	e.GET("/songs/:id", s.getSong)
	e.GET("/songs/:id/edit", s.getSongEdit, s.loginRequired)
	e.POST("/songs/:id/edit", s.postSongEdit, s.loginRequired)
	e.POST("/songs/:id/delete", s.postSongDelete, s.loginRequired)
	e.POST("/songs/:id/rate", s.postSongRate, s.loginRequired)

	e.GET("/playlists", s.getPlaylists, s.loginRequired)
	e.POST("/playlists", s.postPlaylists, s.loginRequired)
	e.GET("/playlists/:id", s.getPlaylist, s.loginRequired)
	e.POST("/playlists/:id/delete", s.postPlaylistDelete, s.loginRequired)
	e.POST("/playlists/add-song", s.postPlaylistAddSongForm, s.loginRequired)
	e.POST("/playlists/:id/add-song", s.postPlaylistAddSong, s.loginRequired)
	e.POST("/playlists/:id/remove-song", s.postPlaylistRemoveSong, s.loginRequired)

	return e
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	db, err := connectDB(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to connect db: %v", err))
	}
	db.SetMaxOpenConns(10)
	defer db.Close()

	sessionStore, err := mysqlstore.NewMySQLStoreFromConnection(
		db.DB, "sessions", "/", 86400, []byte(cfg.SessionSecret),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize session store: %v", err))
	}

	blobs, err := newFileStore(cfg.PublicDir)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize blob store: %v", err))
	}

	s := &server{
		store:    newDBStore(db),
		blobs:    blobs,
		sessions: sessionStore,
	}

	e := newEcho(s)
	e.Renderer = newRenderer()
	e.Static("/assets", filepath.Join(cfg.PublicDir, "assets"))
	e.Static(uploadsURLPrefix, blobs.uploadsDir())

	if cfg.DemoMode {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := seedDemoUser(ctx, s.store)
		cancel()
		if err != nil {
			e.Logger.Fatalf("failed to seed demo user: %v", err)
			return
		}
	}

	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	e.Logger.Infof("starting citytracks server on :%s ...", cfg.Port)
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
