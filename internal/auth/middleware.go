package auth

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/internal/config"
	"github.com/merchantlabs/backoffice/internal/domain/identity"
)

const (
	ctxUserID = "UserID"
	ctxRole   = "Role"
)

// Claims mirrors identity.Service claims to keep this package free of a
// direct service dependency.
type Claims struct {
	UserID int64
	Role   string
}

// Middleware authenticates requests and establishes the acting user on the
// request context so downstream database writes carry attribution.
type Middleware struct {
	sessions *Sessions
	verify   func(token string) (*Claims, error)
	admin    string
}

func NewMiddleware(cfg *config.Config, sessions *Sessions, verify func(token string) (*Claims, error)) *Middleware {
	return &Middleware{
		sessions: sessions,
		verify:   verify,
		admin:    cfg.AdminAPIToken,
	}
}

// Identify resolves the caller from a bearer token or session cookie. It
// never rejects; handlers that require auth stack RequireUser on top.
func (m *Middleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := m.bearer(c)
		if !ok {
			userID, role, ok = m.sessions.UserID(c)
		}

		ctx := audit.WithRequestInfo(c.Request.Context(), audit.RequestInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if ok {
			c.Set(ctxUserID, userID)
			c.Set(ctxRole, role)
			ctx = audit.WithActor(ctx, userID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireUser rejects unauthenticated requests.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers below the given role. Admins pass everywhere.
func (m *Middleware) RequireRole(role identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		current, _ := c.Get(ctxRole)
		got, _ := current.(string)
		if got != string(role) && got != string(identity.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RequireAdminToken guards operational endpoints with a static bearer token.
func (m *Middleware) RequireAdminToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if m.admin == "" || subtle.ConstantTimeCompare([]byte(token), []byte(m.admin)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller set by Identify.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func (m *Middleware) bearer(c *gin.Context) (int64, string, bool) {
	token := bearerToken(c)
	if token == "" || m.verify == nil {
		return 0, "", false
	}
	claims, err := m.verify(token)
	if err != nil {
		return 0, "", false
	}
	return claims.UserID, claims.Role, true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ParseSubject converts a JWT subject into a user ID.
func ParseSubject(sub string) (int64, error) {
	return strconv.ParseInt(sub, 10, 64)
}
