package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/onboard-api/internal/httputil"
	"github.com/lumenhq/onboard-api/internal/logging"
	"github.com/lumenhq/onboard-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service         *Service
	destinations    DestinationResolver
	rateLimiter     RateLimiter
	logger          *logging.Logger
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewHandler(
	service *Service,
	destinations DestinationResolver,
	rateLimiter RateLimiter,
	logger *logging.Logger,
	isProduction bool,
	accessDuration, refreshDuration time.Duration,
) *Handler {
	return &Handler{
		service:         service,
		destinations:    destinations,
		rateLimiter:     rateLimiter,
		logger:          logger,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Optional deep link honored over the computed destination
	RedirectTo string `json:"redirect_to,omitempty"`
}

// ExchangeRequest represents the one-time login code exchange request body
type ExchangeRequest struct {
	Code       string `json:"code"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	User      UserResponse `json:"user"`
	LoginCode string       `json:"login_code,omitempty"`
	Message   string       `json:"message"`
}

// SessionResponse carries tokens (for non-browser clients) together with
// the bootstrap-computed destination.
type SessionResponse struct {
	Tokens      *AuthTokens `json:"tokens,omitempty"`
	Destination Destination `json:"destination"`
	Message     string      `json:"message,omitempty"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new user account. Returns a one-time login code for completing the signup exchange.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration credentials"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := httputil.ClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "register")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for register", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	// Per-email cooldown against rapid repeat signups for the same address
	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("registration attempt during email cooldown")
		respondError(w, "please wait before trying again", httputil.CodeEmailCooldown, http.StatusTooManyRequests)
		return
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "register"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	newUser, loginCode, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		if errors.Is(err, ErrEmailRequired) {
			respondError(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrInvalidEmailFormat) {
			respondError(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrPasswordRequired) {
			respondError(w, err.Error(), httputil.CodePasswordRequired, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrPasswordTooShort) {
			respondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	respondJSON(w, RegisterResponse{
		User:      UserResponse{ID: newUser.ID, Email: newUser.Email},
		LoginCode: loginCode,
		Message:   "Registration successful.",
	}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate a user, run the session bootstrap and return tokens plus the post-login destination
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := httputil.ClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "login")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for login", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "login"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	authedUser, tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// Session bootstrap: ensure onboarding state exists and resolve where
	// this login should land.
	dest := h.destinations.Bootstrap(r.Context(), authedUser.ID, req.RedirectTo)

	logger.Info("user logged in successfully", "destination", dest.Path)

	h.respondSession(w, r, tokens, dest)
}

// Exchange handles one-time login code exchange
// @Summary      Exchange a one-time login code
// @Description  Trade a one-time code for a session. Runs the session bootstrap and returns the post-login destination.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ExchangeRequest true "One-time code"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body or missing code"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or already used code"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/exchange [post]
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid exchange request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if req.Code == "" {
		respondError(w, "login code required", httputil.CodeLoginCodeRequired, http.StatusBadRequest)
		return
	}

	authedUser, tokens, err := h.service.ExchangeLoginCode(r.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, ErrLoginCodeNotFound) {
			logger.Warn("exchange failed: invalid or used login code")
			respondError(w, "invalid or expired login code", httputil.CodeInvalidLoginCode, http.StatusUnauthorized)
			return
		}
		logger.Error("exchange failed: internal error", "error", err.Error())
		respondError(w, "failed to exchange login code", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	dest := h.destinations.Bootstrap(r.Context(), authedUser.ID, req.RedirectTo)

	logger.Info("login code exchanged successfully", "user_id", authedUser.ID, "destination", dest.Path)

	h.respondSession(w, r, tokens, dest)
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Use a refresh token to get a new access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token"
// @Success      200 {object} AuthTokens
// @Failure      400 {object} httputil.ErrorResponse "Refresh token required"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	// Try to get refresh token from JSON body first
	var refreshToken string
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		refreshToken = req.RefreshToken
	}

	// Fallback to cookie if body empty/invalid
	if refreshToken == "" {
		cookieToken, err := GetRefreshTokenFromCookie(r)
		if err == nil {
			refreshToken = cookieToken
		}
	}

	if refreshToken == "" {
		logger.Warn("refresh token missing from both body and cookie")
		respondError(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	refreshToken = strings.TrimSpace(refreshToken)

	tokens, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			logger.Warn("token refresh failed: invalid or expired token", "error", err.Error())
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("token refresh failed: internal error", "error", err.Error())
		respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token refreshed successfully")

	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		respondJSON(w, map[string]string{
			"message": "token refreshed successfully",
		}, http.StatusOK)
	} else {
		respondJSON(w, tokens, http.StatusOK)
	}
}

// Logout handles user logout
// @Summary      User logout
// @Description  Logout user by revoking refresh token and clearing cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} map[string]string
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var refreshToken string
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		cookieToken, _ := GetRefreshTokenFromCookie(r)
		refreshToken = cookieToken
	}

	if refreshToken != "" {
		if err := h.service.RevokeRefreshToken(r.Context(), refreshToken); err != nil {
			logger.Warn("failed to revoke refresh token", "error", err)
			// Continue - still clear cookies
		}
	}

	ClearAuthCookies(w)

	logger.Info("user logged out successfully")

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// respondSession writes tokens via cookies for browser clients or in the
// body otherwise, always including the resolved destination.
func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, tokens *AuthTokens, dest Destination) {
	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		respondJSON(w, SessionResponse{
			Destination: dest,
			Message:     "logged in successfully",
		}, http.StatusOK)
	} else {
		respondJSON(w, SessionResponse{
			Tokens:      tokens,
			Destination: dest,
		}, http.StatusOK)
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
