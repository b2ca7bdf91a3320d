package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/analyticshub/gatekeeper/internal/services"
	pkghttp "github.com/analyticshub/gatekeeper/pkg/http"
)

// genericDenyMessage is returned for both blocked IPs and bad credentials.
// The two must be indistinguishable to the caller to prevent probing.
const genericDenyMessage = "Invalid email or password"

// GuardServiceInterface defines the interface for the login guard
type GuardServiceInterface interface {
	Authenticate(ctx context.Context, input services.LoginInput) (*models.Decision, error)
}

// TokenIssuer defines the interface for issuing session tokens on ALLOW
type TokenIssuer interface {
	GenerateAccessToken(user *models.User) (string, error)
	GenerateRefreshToken(user *models.User, remember bool) (string, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	guard    GuardServiceInterface
	tokens   TokenIssuer
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(guard GuardServiceInterface, tokens TokenIssuer, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		guard:    guard,
		tokens:   tokens,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response for a successful login
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Malformed input is rejected here, before the guard runs; it leaves no
	// ledger row.
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	input := services.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		Remember:  req.Remember,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}

	decision, err := h.guard.Authenticate(r.Context(), input)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Email and password are required")
			return
		}
		// Fail closed: storage problems deny the login.
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if !decision.Allowed {
		writeDenial(w, decision.Reason)
		return
	}

	accessToken, err := h.tokens.GenerateAccessToken(decision.User)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	refreshToken, err := h.tokens.GenerateRefreshToken(decision.User, req.Remember)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: &UserResponse{
			ID:    decision.User.ID,
			Email: decision.User.Email,
			Name:  decision.User.Name,
			Role:  decision.User.Role,
		},
	})
}

// writeDenial maps a deny reason to its HTTP response. ip_blocked and
// invalid_credentials share one message; locked/suspended may be specific
// because the caller has already proven the password.
func writeDenial(w http.ResponseWriter, reason models.DenyReason) {
	switch reason {
	case models.DenyIPBlocked, models.DenyInvalidCredentials:
		pkghttp.WriteUnauthorized(w, genericDenyMessage)
	case models.DenyAccountLocked:
		pkghttp.WriteForbidden(w, "Account temporarily locked due to repeated failed logins. Try again later")
	case models.DenyAccountSuspended:
		pkghttp.WriteForbidden(w, "Account is suspended. Contact an administrator")
	default:
		pkghttp.WriteUnauthorized(w, genericDenyMessage)
	}
}
