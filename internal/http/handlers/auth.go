package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/accounts"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
)

// Accounts is the slice of the account service the auth endpoints use.
type Accounts interface {
	Register(ctx context.Context, email, name, rawPassword string) (user.User, error)
	Login(ctx context.Context, email, rawPassword, totpCode string) (user.User, accounts.Session, error)
	IssueSession(u user.User) (accounts.Session, error)
	EnrollTwoFactor(ctx context.Context, u user.User) (user.User, error)
	EnableTwoFactor(ctx context.Context, u user.User, code string) (user.User, error)
}

type AuthHandler struct {
	accounts Accounts
	cookies  CookiePolicy
}

func NewAuthHandler(accounts Accounts, cookies CookiePolicy) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookies: cookies}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Name     string `json:"name" binding:"required,min=1,max=200"`
	Password string `json:"pwd" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"pwd" binding:"required"`
	TOTP     string `json:"tfa"`
}

type EnableTwoFactorRequest struct {
	TOTP string `json:"tfa" binding:"required,len=6,numeric"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.accounts.Register(ctx.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		RespondDomainError(ctx, err, "Could not create user")
		return
	}

	sess, err := h.accounts.IssueSession(u)
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.cookies.Set(ctx, sess.Token, sess.ExpiresAt)

	ctx.JSON(http.StatusCreated, gin.H{
		"status":  http.StatusCreated,
		"message": "Created new user",
		"email":   u.Email,
		"id":      u.ID,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, sess, err := h.accounts.Login(ctx.Request.Context(), req.Email, req.Password, req.TOTP)
	if err != nil {
		RespondDomainError(ctx, err, "Could not log in")
		return
	}

	h.cookies.Set(ctx, sess.Token, sess.ExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"user":   u.Name,
	})
}

// Logout only drops the cookie; tokens stay valid until they expire.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.cookies.Clear(ctx)
	ctx.Status(http.StatusNoContent)
}

// Me reports the acting user, enrolling a TOTP secret on first sight so the
// client can show the provisioning QR code.
func (h *AuthHandler) Me(ctx *gin.Context, actor user.User) {
	u, err := h.accounts.EnrollTwoFactor(ctx.Request.Context(), actor)
	if err != nil {
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "Authenticated",
		"user":   u.Public(),
	})
}

func (h *AuthHandler) EnableTwoFactor(ctx *gin.Context, actor user.User) {
	var req EnableTwoFactorRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.accounts.EnableTwoFactor(ctx.Request.Context(), actor, req.TOTP)
	if err != nil {
		RespondDomainError(ctx, err, "Could not enable two-factor authentication")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Two-factor authentication enabled",
		"user":    u.Public(),
	})
}
