package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AdminIDKey is the gin context key holding the authenticated admin ID.
const AdminIDKey = "admin_id"

const tokenIssuer = "psybot"

// ErrNoSecret is returned when a token is requested without a signing key.
var ErrNoSecret = errors.New("admin API secret is not configured")

// AdminChecker reports whether a Telegram user is an admin.
type AdminChecker interface {
	IsAdmin(userID int64) bool
}

// AdminClaims defines the structure of the moderation API token claims.
type AdminClaims struct {
	AdminID int64 `json:"admin_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs moderation API tokens for admins.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer signing HS256 tokens valid for ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token for adminID and its expiry time.
func (i *TokenIssuer) Issue(adminID int64) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	now := time.Now()
	expires := now.Add(i.ttl)
	claims := &AdminClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprint(adminID),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expires, nil
}

// AdminMiddleware admits requests carrying a Bearer token signed with secret
// whose admin ID is still a configured admin.
func AdminMiddleware(secret string, admins AdminChecker, logger *zap.Logger) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer <token>"})
			c.Abort()
			return
		}

		if len(key) == 0 {
			logger.Error("Moderation API called without a configured secret")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
				c.Abort()
				return
			}
			logger.Warn("Invalid admin token", zap.Error(err), zap.String("path", c.FullPath()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		if !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		// admins removed from the config lose access before their token expires
		if !admins.IsAdmin(claims.AdminID) {
			logger.Warn("Rejected moderation API call from non-admin",
				zap.Int64("admin_id", claims.AdminID),
				zap.String("path", c.FullPath()))
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}

		c.Set(AdminIDKey, claims.AdminID)
		c.Next()
	}
}
