package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/auth"
	"github.com/gogotex/todo-api/internal/oidc"
	"github.com/gogotex/todo-api/pkg/logger"
	"github.com/gogotex/todo-api/pkg/middleware"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (r *loginRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (r *refreshRequest) normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

// TokenBlacklist remembers signed-out access tokens.
type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

// AuthHandler serves sign-in, refresh and sign-out.
type AuthHandler struct {
	authn     auth.Authenticator
	blacklist TokenBlacklist
}

func NewAuthHandler(a auth.Authenticator, bl TokenBlacklist) *AuthHandler {
	return &AuthHandler{authn: a, blacklist: bl}
}

func (h *AuthHandler) Register(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/users")
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", authMW, h.Logout)
}

func device(c *gin.Context) auth.Device {
	return auth.Device{UserAgent: c.Request.UserAgent(), IP: c.ClientIP(), Origin: c.GetHeader("Origin")}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	ts, err := h.authn.SignIn(c.Request.Context(), req.Email, req.Password, device(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	ts, err := h.authn.Refresh(c.Request.Context(), req.RefreshToken, device(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

// Logout blacklists the presented access token for the rest of its life,
// drops the refresh token given in the body (optional) and revokes the
// caller's remaining refresh tokens.
func (h *AuthHandler) Logout(c *gin.Context) {
	// the body is optional and may arrive chunked, without a Content-Length
	var req refreshRequest
	if c.Request.Body != nil {
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, apperr.Validation(err))
			return
		}
		req.normalize()
	}

	at := middleware.RawToken(c)
	if exp, err := parseExpFromJWT(at); err == nil {
		if err := h.blacklist.Add(c.Request.Context(), at, time.Until(exp)); err != nil {
			fail(c, fmt.Errorf("blacklist access token: %w", err))
			return
		}
	} else {
		logger.Debugf("logout: access token without readable exp: %v", err)
	}

	if err := h.authn.SignOut(c.Request.Context(), middleware.UID(c), req.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out."})
}

// parseExpFromJWT reads the exp claim without verifying the token; it only
// sizes the blacklist entry of a token the middleware already accepted.
func parseExpFromJWT(tok string) (time.Time, error) {
	var claims struct {
		Exp *json.Number `json:"exp"`
	}
	if err := oidc.DecodePayload(tok, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == nil {
		return time.Time{}, errors.New("exp claim not present")
	}
	if secs, err := claims.Exp.Int64(); err == nil {
		return time.Unix(secs, 0), nil
	}
	f, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(f), 0), nil
}
