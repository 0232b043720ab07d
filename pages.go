package main

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

// server wires the handlers to their collaborators.
type server struct {
	store    store
	blobs    *fileStore
	sessions sessions.Store
}

// internalError logs full detail server-side and leaks nothing to the client.
func (s *server) internalError(c echo.Context, err error) error {
	c.Logger().Errorf("internal error: %s", err)
	return c.String(http.StatusInternalServerError, "Internal server error")
}

// GET /

func (s *server) getHome(c echo.Context) error {
	return c.Render(http.StatusOK, "home.html", viewData{User: currentUser(c)})
}

// GET /login

func (s *server) getLoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, "login.html", viewData{User: currentUser(c)})
}

// GET /signup

func (s *server) getSignupPage(c echo.Context) error {
	return c.Render(http.StatusOK, "signup.html", viewData{User: currentUser(c)})
}

// GET /upload

func (s *server) getUploadPage(c echo.Context) error {
	return c.Render(http.StatusOK, "upload.html", viewData{User: currentUser(c)})
}

// GET /test

func (s *server) getTest(c echo.Context) error {
	return c.String(http.StatusOK, "Server is running")
}
