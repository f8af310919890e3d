package handler

import (
	"net/http"
	"time"

	"github.com/iruldev/shortlink-api/internal/app"
	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
	"github.com/iruldev/shortlink-api/internal/transport/http/middleware"
	"github.com/iruldev/shortlink-api/internal/usecase/session"
)

// SignupRequest is the POST /api/v1/auth/signup payload.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the POST /api/v1/auth/login payload.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,max=128"`
	DeviceName string `json:"device_name,omitempty" validate:"omitempty,max=128"`
}

// UserResponse is the public user representation. The password hash never
// crosses this boundary.
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// SessionResponse is the public session representation.
type SessionResponse struct {
	ID         int64     `json:"id"`
	DeviceName *string   `json:"device_name,omitempty"`
	DeviceIP   string    `json:"device_ip"`
	UserAgent  *string   `json:"user_agent,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// AuthHandler serves signup, login, refresh, logout and session listing.
type AuthHandler struct {
	sessions *session.Service
	cookies  security.CookiePolicy
	clock    domain.Clock
	funnel   *errorfunnel.Funnel
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Service, cookies security.CookiePolicy, clock domain.Clock, funnel *errorfunnel.Funnel) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies, clock: clock, funnel: funnel}
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if validationErrors := contract.ValidateRequestBody(r, &req); len(validationErrors) > 0 {
		h.funnel.WriteValidation(w, r, validationErrors)
		return
	}

	user, err := h.sessions.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	_ = contract.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// setTokenCookies writes both token cookies for the pair.
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair *session.TokenPair) {
	now := h.clock.Now()
	http.SetCookie(w, h.cookies.AccessCookie(pair.AccessToken, pair.AccessExpiresAt, now))
	http.SetCookie(w, h.cookies.RefreshCookie(pair.RefreshToken, pair.RefreshExpiresAt, now))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if validationErrors := contract.ValidateRequestBody(r, &req); len(validationErrors) > 0 {
		h.funnel.WriteValidation(w, r, validationErrors)
		return
	}

	device := session.Device{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Name:      req.DeviceName,
	}

	user, pair, err := h.sessions.Login(r.Context(), req.Email, req.Password, device)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	h.setTokenCookies(w, pair)
	_ = contract.WriteJSON(w, http.StatusOK, map[string]any{
		"user":         toUserResponse(user),
		"access_token": pair.AccessToken,
		"token_type":   "bearer",
		"expires_at":   pair.AccessExpiresAt,
	})
}

// Refresh handles POST /api/v1/auth/refresh: mints a new access token from
// the refresh cookie, preserving the refresh token value.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(security.RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}
	if refreshToken == "" {
		h.funnel.Write(w, r, domain.WrapError(domain.ErrUnauthorized, "missing refresh token"))
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	h.setTokenCookies(w, pair)
	_ = contract.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": pair.AccessToken,
		"token_type":   "bearer",
		"expires_at":   pair.AccessExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout: revokes the refresh session and
// clears both cookies. Idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(security.RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}

	if err := h.sessions.Logout(r.Context(), refreshToken); err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	h.cookies.ClearCookies(w)
	_ = contract.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Sessions handles GET /api/v1/auth/sessions for the authenticated user.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	auth := app.GetAuthContext(r.Context())

	params := contract.ParseListParams(r.URL.Query())
	sessions, total, err := h.sessions.Sessions(r.Context(), auth.UserID, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	results := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		results = append(results, SessionResponse{
			ID:         s.ID,
			DeviceName: s.DeviceName,
			DeviceIP:   s.DeviceIP,
			UserAgent:  s.UserAgent,
			IssuedAt:   s.IssuedAt,
			ExpiresAt:  s.ExpiresAt,
			Revoked:    s.Revoked,
			LastUsedAt: s.LastUsedAt,
		})
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(results, total, params))
}
