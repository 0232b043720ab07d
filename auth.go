package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "citytracks_session"
	sessionUserKey    = "user_id"
	contextUserKey    = "user"
)

func generatePasswordHash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return "", fmt.Errorf("error bcrypt.GenerateFromPassword: %w", err)
	}
	return string(hashed), nil
}

func comparePasswordHash(password, passwordHash string) (bool, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, fmt.Errorf("error bcrypt.CompareHashAndPassword: %w", err)
	}
	return true, nil
}

func (s *server) getSession(r *http.Request) (*sessions.Session, error) {
	sess, err := s.sessions.Get(r, sessionCookieName)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *server) newSession(r *http.Request) (*sessions.Session, error) {
	sess, err := s.sessions.New(r, sessionCookieName)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// loadUser resolves the session cookie to a user row and attaches it to the
// request context. Anonymous requests (no session, stale user id) pass
// through with no user set.
func (s *server) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := s.getSession(c.Request())
		if err != nil {
			// An undecodable cookie is treated as anonymous.
			return next(c)
		}
		id, ok := sess.Values[sessionUserKey].(int)
		if !ok {
			return next(c)
		}
		user, err := s.store.UserByID(c.Request().Context(), id)
		if err != nil {
			return s.internalError(c, fmt.Errorf("error resolve session user id=%d: %w", id, err))
		}
		if user != nil {
			c.Set(contextUserKey, user)
		}
		return next(c)
	}
}

// loginRequired redirects anonymous requests to the login page.
func (s *server) loginRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *UserRow {
	user, _ := c.Get(contextUserKey).(*UserRow)
	return user
}

// POST /signup

func (s *server) postSignup(c echo.Context) error {
	name := c.FormValue("name")
	email := c.FormValue("email")
	password := c.FormValue("password")

	ctx := c.Request().Context()
	existing, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error UserByEmail at signup: %w", err))
	}
	if existing != nil {
		// Already registered: send them to login without revealing whether
		// the address is taken.
		return c.Redirect(http.StatusFound, "/login")
	}

	passwordHash, err := generatePasswordHash(password)
	if err != nil {
		return s.internalError(c, err)
	}

	id, err := s.store.InsertUser(ctx, name, email, passwordHash)
	if err != nil {
		if err == errEmailTaken {
			// Lost the race against a concurrent signup for the same email.
			return c.Redirect(http.StatusFound, "/login")
		}
		return s.internalError(c, fmt.Errorf("error InsertUser at signup: %w", err))
	}

	sess, err := s.newSession(c.Request())
	if err != nil {
		return s.internalError(c, fmt.Errorf("error newSession at signup: %w", err))
	}
	sess.Values[sessionUserKey] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return s.internalError(c, fmt.Errorf("error Save session at signup: %w", err))
	}

	return c.Redirect(http.StatusFound, "/")
}

// POST /login

func (s *server) postLogin(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")

	ctx := c.Request().Context()
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return s.internalError(c, fmt.Errorf("error UserByEmail at login: %w", err))
	}
	if user == nil {
		// No such email; indistinguishable from a wrong password.
		return c.Redirect(http.StatusFound, "/login")
	}
	if user.PasswordHash == "" {
		// Placeholder accounts (demo seed) cannot be logged into.
		return c.Redirect(http.StatusFound, "/login")
	}

	matched, err := comparePasswordHash(password, user.PasswordHash)
	if err != nil {
		return s.internalError(c, err)
	}
	if !matched {
		return c.Redirect(http.StatusFound, "/login")
	}

	sess, err := s.newSession(c.Request())
	if err != nil {
		return s.internalError(c, fmt.Errorf("error newSession at login: %w", err))
	}
	sess.Values[sessionUserKey] = user.ID
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return s.internalError(c, fmt.Errorf("error Save session at login: %w", err))
	}

	return c.Redirect(http.StatusFound, "/")
}

// POST /logout

func (s *server) postLogout(c echo.Context) error {
	sess, err := s.getSession(c.Request())
	if err != nil {
		// An undecodable cookie carries no usable session, same as loadUser.
		return c.Redirect(http.StatusFound, "/")
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return s.internalError(c, fmt.Errorf("error Save session at logout: %w", err))
	}
	return c.Redirect(http.StatusFound, "/")
}
