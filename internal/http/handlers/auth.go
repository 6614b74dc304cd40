package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/domain/user"
	"github.com/gatherly/gatherly/internal/security"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID int64, email, role string) (string, error)
}

type AuthHandler struct {
	users UsersStore
	jwt   TokenIssuer
	dev   bool
}

func NewAuthHandler(users UsersStore, jwt TokenIssuer, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users: users,
		jwt:   jwt,
		dev:   cfg.Env == "dev",
	}
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignupRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.users.Create(cctx, req.Name, req.Email, hash)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	token, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	RespondMessage(ctx, http.StatusCreated, "account created", gin.H{
		"user":         u,
		"access_token": token,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "Invalid email or password")
			return
		}
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if !u.IsActive {
		RespondUnAuthorized(ctx, "Invalid email or password")
		return
	}

	err = security.CheckPassword(u.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "Invalid email or password")
		return
	}

	token, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not log in")
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{
		"user":         u,
		"access_token": token,
	})
}
