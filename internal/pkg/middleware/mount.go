package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MountIDKey is the gin context key holding the planner mount id.
const MountIDKey = "mount_id"

// MountConfig configures the signed cookie that ties a browser tab to its
// planner session.
type MountConfig struct {
	SecretKey  string
	CookieName string
	TTL        time.Duration
	Secure     bool
	Logger     *zap.Logger
}

// MountClaims represents the JWT claims of the mount cookie
type MountClaims struct {
	MountID string `json:"mount_id"`
	jwt.RegisteredClaims
}

// MountTokens signs and validates mount tokens.
type MountTokens struct {
	cfg MountConfig
}

func NewMountTokens(cfg MountConfig) *MountTokens {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "planner_mount"
	}
	return &MountTokens{cfg: cfg}
}

// Generate signs a token for mountID.
func (t *MountTokens) Generate(mountID string) (string, error) {
	now := time.Now()
	claims := MountClaims{
		MountID: mountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.SecretKey))
	if err != nil {
		t.cfg.Logger.Error("Failed to sign mount token", zap.Error(err))
		return "", fmt.Errorf("failed to generate mount token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns its mount id.
func (t *MountTokens) Validate(tokenString string) (string, error) {
	claims := &MountClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.cfg.SecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if _, err := uuid.Parse(claims.MountID); err != nil {
		return "", fmt.Errorf("invalid mount id: %w", err)
	}
	return claims.MountID, nil
}

// Middleware resolves the mount id for every request. A missing or invalid
// cookie starts a new mount. The cookie is re-issued on each request so the
// session expiry slides with activity.
func (t *MountTokens) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		mountID := ""
		if cookie, err := c.Cookie(t.cfg.CookieName); err == nil && cookie != "" {
			id, err := t.Validate(cookie)
			if err != nil {
				t.cfg.Logger.Debug("Discarding invalid mount cookie", zap.Error(err))
			} else {
				mountID = id
			}
		}
		if mountID == "" {
			mountID = uuid.NewString()
		}

		token, err := t.Generate(mountID)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(t.cfg.CookieName, token, int(t.cfg.TTL.Seconds()), "/", "", t.cfg.Secure, true)

		c.Set(MountIDKey, mountID)
		c.Next()
	}
}

// MountIDFromContext returns the mount id set by MountTokens.Middleware.
func MountIDFromContext(c *gin.Context) string {
	if id, exists := c.Get(MountIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
