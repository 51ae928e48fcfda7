// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the authentication endpoints on r, which is
// expected to be the accounts router. limiter guards the endpoints that
// accept credentials or send email.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	limiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(limiter)
		r.Post("/authenticate", h.Authenticate)
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/register", h.Register)
		r.Post("/forgot-password", h.ForgotPassword)
	})

	r.Post("/verify-email", h.VerifyEmail)
	r.Post("/validate-reset-token", h.ValidateResetToken)
	r.Post("/reset-password", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/revoke-token", h.RevokeToken)
		r.Get("/{id}/refresh-tokens", h.RefreshTokens)
	})
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			core.JSONError(w, core.UnauthorizedError("email or password is incorrect"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, middleware.ClientIP(r))
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			core.JSONError(w, core.TokenInvalidError())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req RevokeTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.RevokeAs(
		r.Context(),
		middleware.GetClaims(r.Context()),
		req.Token,
		middleware.ClientIP(r),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrAuthentication):
			core.JSONError(w, core.TokenInvalidError())
		case errors.Is(err, core.ErrForbidden):
			core.Unauthorized(w, "Unauthorized")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Message(w, "Token revoked")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Register(r.Context(), req, r.Header.Get("Origin")); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Message(w, "Registration successful, please check your email for verification instructions")
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, ErrInvalidVerificationToken) {
			core.BadRequest(w, "Verification failed")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Message(w, "Verification successful, you can now login")
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, r.Header.Get("Origin")); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Message(w, "Please check your email for password reset instructions")
}

func (h *Handler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var req ValidateResetTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ValidateResetToken(r.Context(), req.Token); err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			core.BadRequest(w, "Invalid token")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Message(w, "Token is valid")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			core.BadRequest(w, "Invalid token")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Message(w, "Password reset successful, you can now login")
}

func (h *Handler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid account id")
		return
	}

	tokens, err := h.service.ListRefreshTokens(
		r.Context(),
		middleware.GetClaims(r.Context()),
		id,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrForbidden), errors.Is(err, ErrAuthentication):
			core.Unauthorized(w, "Unauthorized")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "account")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, tokens)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}
