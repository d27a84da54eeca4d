package internal

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pickup-games/internal/storage"
	"pickup-games/internal/storage/sqlstore"
)

const tokenTTL = 7 * 24 * time.Hour

// AuthConfig holds token signing and admin settings.
type AuthConfig struct {
	Secret       string
	AdminEmail   string
	CookieSecure bool
}

func (a AuthConfig) isAdmin(email string) bool {
	return a.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(a.AdminEmail))
}

func Register(db *sqlstore.Store, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
		if err != nil {
			respondError(c, err)
			return
		}
		id, err := uuid.NewV7()
		if err != nil {
			respondError(c, err)
			return
		}
		u := sqlstore.User{
			ID:        id.String(),
			Name:      name,
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			Area:      strings.TrimSpace(req.Area),
			Bio:       strings.TrimSpace(req.Bio),
			Phone:     strings.TrimSpace(req.Phone),
			CreatedAt: time.Now().UTC(),
		}
		err = db.CreateUser(c.Request.Context(), u, string(hash))
		if errors.Is(err, storage.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		logAction(db, u.ID, "register", "user registered")
		issueSession(c, cfg, u, http.StatusCreated)
	}
}

func Login(db *sqlstore.Store, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
			return
		}

		u, passHash, err := db.UserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(passHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		logAction(db, u.ID, "login", "success")
		issueSession(c, cfg, u, http.StatusOK)
	}
}

func Logout(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(cookieName, "", -1, "/", "", cfg.CookieSecure, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// issueSession signs a token for u, sets it as the session cookie and also
// returns it for clients using the Authorization header.
func issueSession(c *gin.Context, cfg AuthConfig, u sqlstore.User, status int) {
	now := time.Now()
	admin := cfg.isAdmin(u.Email)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: u.ID,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pickup-games",
		},
	})
	s, err := tok.SignedString([]byte(cfg.Secret))
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(cookieName, s, int(tokenTTL/time.Second), "/", "", cfg.CookieSecure, true)
	c.JSON(status, gin.H{
		"access_token": s,
		"token_type":   "bearer",
		"user":         UserResponse{User: u, IsAdmin: admin, Badge: reliabilityBadge(u.GamesPlayed)},
	})
}
