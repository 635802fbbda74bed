package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kaybank-ledger/internal/domain/account"
)

// IdentityKey is the key used to store the authenticated identity in the gin context
const IdentityKey = "identity"

// TokenParser verifies a bearer token and returns the identity it was issued for
type TokenParser interface {
	Parse(token string) (*account.Identity, error)
}

// Authenticate rejects requests without a valid bearer token. On success the
// caller's identity is available through GetIdentity.
func Authenticate(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Missing bearer token")
			return
		}

		identity, err := parser.Parse(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// GetIdentity returns the identity set by Authenticate, or nil
func GetIdentity(c *gin.Context) *account.Identity {
	if v, exists := c.Get(IdentityKey); exists {
		if identity, ok := v.(*account.Identity); ok {
			return identity
		}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="ledger"`)
	response := gin.H{
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, response)
}
