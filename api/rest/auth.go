package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const sessionOpTimeout = 2 * time.Second

var (
	errBadCredentials = errors.New("invalid credentials")
	errBanned         = errors.New("account banned")
	errNameTaken      = errors.New("username already taken")
)

// AuthHandler serves login, logout and token refresh. A session is a JWT
// plus a cache entry mapping it to the account; logout deletes the entry.
type AuthHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
}

func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
	// Wallet is an optional public address shown next to the account's monsters.
	Wallet string `json:"wallet" binding:"max=64"`
}

// Login handles POST /api/auth/login. An unknown username is registered
// with the given password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.authenticate(req)
	if err != nil {
		status, msg := authStatus(err), err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	token, err := h.openSession(c.Request.Context(), acc)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}

	updates := map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	}
	if req.Wallet != "" && req.Wallet != acc.Wallet {
		updates["wallet"] = req.Wallet
		acc.Wallet = req.Wallet
	}
	_ = h.db.Model(acc).Updates(updates)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
		"username":   acc.Username,
		"wallet":     acc.Wallet,
	})
}

// authenticate checks the password of an existing account or registers a
// new one.
func (h *AuthHandler) authenticate(req loginRequest) (*model.Account, error) {
	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return h.register(req)
	case err != nil:
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		return nil, errBadCredentials
	}
	if acc.Status == model.AccountBanned {
		return nil, errBanned
	}
	return &acc, nil
}

func (h *AuthHandler) register(req loginRequest) (*model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &model.Account{
		Username:     req.Username,
		PasswordHash: string(hash),
		Wallet:       req.Wallet,
		Status:       model.AccountActive,
	}
	if err := h.db.Create(acc).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, errNameTaken
		}
		return nil, err
	}
	return acc, nil
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, errBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errBanned):
		return http.StatusForbidden
	case errors.Is(err, errNameTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// openSession signs a token for acc and records it in the cache.
func (h *AuthHandler) openSession(ctx context.Context, acc *model.Account) (string, error) {
	token, err := mw.GenerateToken(acc.ID, acc.Username, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()
	if err := h.cache.Set(ctx, cache.SessionKey(token), strconv.FormatInt(acc.ID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

func (h *AuthHandler) closeSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()
	return h.cache.Del(ctx, cache.SessionKey(token))
}

// Logout handles POST /api/auth/logout. Other sessions of the account stay live.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.BearerToken(c, false)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	_ = h.closeSession(c.Request.Context(), token)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh: the calling token is revoked and
// a fresh one issued.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var acc model.Account
	if err := h.db.Select("id, username, status").First(&acc, mw.GetAccountID(c)).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if acc.Status == model.AccountBanned {
		c.JSON(http.StatusForbidden, gin.H{"error": errBanned.Error()})
		return
	}

	_ = h.closeSession(c.Request.Context(), mw.BearerToken(c, false))
	token, err := h.openSession(c.Request.Context(), &acc)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// isUniqueViolation detects duplicate-key errors from the sqlite and mysql drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
