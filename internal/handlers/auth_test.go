package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/analyticshub/gatekeeper/internal/handlers"
	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/analyticshub/gatekeeper/internal/services"
	pkghttp "github.com/analyticshub/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGuard implements handlers.GuardServiceInterface
type mockGuard struct {
	AuthenticateFunc func(ctx context.Context, input services.LoginInput) (*models.Decision, error)
	LastInput        services.LoginInput
}

func (m *mockGuard) Authenticate(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
	m.LastInput = input
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, input)
	}
	return models.Deny(models.DenyInvalidCredentials), nil
}

// mockTokenIssuer implements handlers.TokenIssuer
type mockTokenIssuer struct {
	AccessErr  error
	RefreshErr error
}

func (m *mockTokenIssuer) GenerateAccessToken(user *models.User) (string, error) {
	if m.AccessErr != nil {
		return "", m.AccessErr
	}
	return "access_" + user.ID, nil
}

func (m *mockTokenIssuer) GenerateRefreshToken(user *models.User, remember bool) (string, error) {
	if m.RefreshErr != nil {
		return "", m.RefreshErr
	}
	if remember {
		return "refresh_long_" + user.ID, nil
	}
	return "refresh_" + user.ID, nil
}

func postLogin(t *testing.T, handler *handlers.AuthHandler, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", &buf)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	return rec
}

func activeUser() *models.User {
	return &models.User{
		ID:     "user_1",
		Email:  "jane@example.com",
		Name:   "Jane",
		Role:   "user",
		Status: "active",
	}
}

func TestLogin_Success(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			return models.Allow(activeUser()), nil
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, handlers.LoginRequest{
		Email:    "jane@example.com",
		Password: "password123",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "access_user_1", resp.AccessToken)
	assert.Equal(t, "refresh_user_1", resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "jane@example.com", resp.User.Email)

	// The handler must hand the guard the connection-level client address.
	assert.Equal(t, "203.0.113.7", guard.LastInput.IPAddress)
	assert.Equal(t, "test-agent", guard.LastInput.UserAgent)
}

func TestLogin_RememberStretchesRefreshToken(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			assert.True(t, input.Remember)
			return models.Allow(activeUser()), nil
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, handlers.LoginRequest{
		Email:    "jane@example.com",
		Password: "password123",
		Remember: true,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "refresh_long_user_1", resp.RefreshToken)
}

func TestLogin_BlockedIPAndBadCredentialsAreIndistinguishable(t *testing.T) {
	newHandler := func(reason models.DenyReason) *handlers.AuthHandler {
		guard := &mockGuard{
			AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
				return models.Deny(reason), nil
			},
		}
		return handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})
	}

	body := handlers.LoginRequest{Email: "jane@example.com", Password: "password123"}

	blockedRec := postLogin(t, newHandler(models.DenyIPBlocked), body)
	credsRec := postLogin(t, newHandler(models.DenyInvalidCredentials), body)

	assert.Equal(t, http.StatusUnauthorized, blockedRec.Code)
	assert.Equal(t, http.StatusUnauthorized, credsRec.Code)
	assert.Equal(t, credsRec.Body.String(), blockedRec.Body.String())
}

func TestLogin_LockedAccountGets403(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			return models.Deny(models.DenyAccountLocked), nil
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, handlers.LoginRequest{Email: "jane@example.com", Password: "password123"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "locked")
}

func TestLogin_SuspendedAccountGets403(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			return models.Deny(models.DenyAccountSuspended), nil
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, handlers.LoginRequest{Email: "jane@example.com", Password: "password123"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "suspended")
}

func TestLogin_MalformedBodyGets400(t *testing.T) {
	guard := &mockGuard{}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, `{"email":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_MissingFieldsGet400(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			t.Fatal("guard must not run for invalid request bodies")
			return nil, nil
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	tests := []struct {
		name string
		body handlers.LoginRequest
	}{
		{"missing email", handlers.LoginRequest{Password: "password123"}},
		{"missing password", handlers.LoginRequest{Email: "jane@example.com"}},
		{"invalid email", handlers.LoginRequest{Email: "not-an-email", Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postLogin(t, handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLogin_StorageErrorGets500(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			return nil, models.ErrInternalServer
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, handlers.LoginRequest{Email: "jane@example.com", Password: "password123"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// A storage failure must never leak as an allow or a credential hint.
	assert.NotContains(t, rec.Body.String(), "access_token")
}

func TestLogin_TokenIssueFailureGets500(t *testing.T) {
	guard := &mockGuard{
		AuthenticateFunc: func(ctx context.Context, input services.LoginInput) (*models.Decision, error) {
			return models.Allow(activeUser()), nil
		},
	}
	handler := handlers.NewAuthHandler(guard, &mockTokenIssuer{AccessErr: errors.New("boom")}, &pkghttp.IPConfig{})

	rec := postLogin(t, handler, handlers.LoginRequest{Email: "jane@example.com", Password: "password123"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
