package middleware

import (
	"nexus-care/internal/models"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	identityKey     = "identity"
	sessionTokenKey = "session_token"
)

// LoadSession resolves the session cookie on every request. Requests without
// a valid session continue anonymously; a session store failure is a 500.
func LoadSession(sessions *services.SessionManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		c.Set(sessionTokenKey, token)
		identity, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(500, gin.H{"error": "Internal Error"})
			return
		}
		if identity != nil {
			c.Set(identityKey, identity)
		}

		c.Next()
	}
}

// CurrentIdentity returns the logged-in caller, or nil for anonymous requests.
func CurrentIdentity(c *gin.Context) *services.Identity {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil
	}
	identity, _ := v.(*services.Identity)
	return identity
}

// SessionToken returns the raw session cookie presented with the request.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}

func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c) == nil {
			c.JSON(401, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles. Anonymous
// callers get 403 like any other caller without the role.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)

		hasRole := false
		if identity != nil {
			for _, role := range roles {
				if identity.Role == role {
					hasRole = true
					break
				}
			}
		}

		if !hasRole {
			c.JSON(403, gin.H{"error": "Forbidden: insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}
