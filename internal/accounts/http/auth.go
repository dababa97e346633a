package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/service"
	"github.com/aussiebroadwan/wellmeet/pkg/accountsdk"
	"github.com/aussiebroadwan/wellmeet/pkg/httpx"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"
)

const msgBadBody = "Request body must be a single JSON object with the documented fields."

// AuthHandler serves the public register and login endpoints.
type AuthHandler struct {
	UserService *service.UserService
	TokenTTL    time.Duration
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary		Register an account
//	@Description	Creates a self-service account. The role is always User; admins create other roles through POST /v1/users.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	accountsdk.UserResponse		"Created user, without password"
//	@Failure		400		{object}	accountsdk.ErrorResponse	"Missing or malformed field"
//	@Failure		409		{object}	accountsdk.ErrorResponse	"Username or email already exists"
//	@Failure		429		{object}	accountsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	accountsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.RegisterRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Warn("register rejected", "reason", err.Error())
		writeInvalidArgument(w, msgBadBody)
		return
	}

	user, err := h.UserService.Register(r.Context(), &domain.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.RoleUser,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in
//	@Description	Exchanges username and password for a signed HS256 access token valid for four hours.
//	@Description	Unknown usernames and wrong passwords produce the same 401 response.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	accountsdk.TokenResponse	"Access token"
//	@Failure		400		{object}	accountsdk.ErrorResponse	"Malformed body"
//	@Failure		401		{object}	accountsdk.ErrorResponse	"Invalid username or password"
//	@Failure		429		{object}	accountsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	accountsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.LoginRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Warn("login rejected", "reason", err.Error())
		writeInvalidArgument(w, msgBadBody)
		return
	}

	tv, err := h.UserService.Login(r.Context(), domain.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, accountsdk.TokenResponse{
		Token:     tv.Token,
		TokenType: "Bearer",
		Username:  tv.Username,
		Role:      string(tv.Role),
		ExpiresAt: tv.ExpiresAt,
		ExpiresIn: int64(h.TokenTTL / time.Second),
	})
}

func toUserResponse(u domain.UserView) accountsdk.UserResponse {
	return accountsdk.UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       string(u.Role),
		CreatedAt:  u.CreatedAt,
		ModifiedAt: u.ModifiedAt,
	}
}
