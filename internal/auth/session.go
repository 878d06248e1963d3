package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/merchantlabs/backoffice/internal/config"
)

const (
	sessionName   = "backoffice_session"
	sessionUserID = "user_id"
	sessionRole   = "role"
)

// Sessions wraps a cookie-backed session store for browser clients.
// API clients use bearer tokens instead and never touch this.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(cfg *config.Config) *Sessions {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.AuthCookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// Establish writes the logged-in user into the session cookie.
func (s *Sessions) Establish(c *gin.Context, userID int64, role string) error {
	session, _ := s.store.Get(c.Request, sessionName)
	session.Values[sessionUserID] = strconv.FormatInt(userID, 10)
	session.Values[sessionRole] = role
	return session.Save(c.Request, c.Writer)
}

// Clear drops the session cookie.
func (s *Sessions) Clear(c *gin.Context) error {
	session, _ := s.store.Get(c.Request, sessionName)
	session.Options.MaxAge = -1
	return session.Save(c.Request, c.Writer)
}

// UserID returns the session's user, if a valid session cookie is present.
func (s *Sessions) UserID(c *gin.Context) (int64, string, bool) {
	session, err := s.store.Get(c.Request, sessionName)
	if err != nil {
		return 0, "", false
	}
	raw, ok := session.Values[sessionUserID].(string)
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	role, _ := session.Values[sessionRole].(string)
	return id, role, true
}
