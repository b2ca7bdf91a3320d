package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/analyticshub/gatekeeper/internal/auth"
	"github.com/analyticshub/gatekeeper/internal/models"
	pkghttp "github.com/analyticshub/gatekeeper/pkg/http"
	pkglogger "github.com/analyticshub/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// BlacklistManager is the blacklist surface used by admin endpoints.
type BlacklistManager interface {
	ListActive(ctx context.Context, limit, offset int) ([]*models.BlacklistEntry, error)
	BlockIfAbsent(ctx context.Context, entry *models.BlacklistEntry, duration time.Duration) error
	Unblock(ctx context.Context, ipAddress string) (int64, error)
}

// BlacklistHandler exposes manual blacklist management to admins
type BlacklistHandler struct {
	blacklist   BlacklistManager
	auditLogger *pkglogger.AuditLogger
}

// NewBlacklistHandler creates a new BlacklistHandler
func NewBlacklistHandler(blacklist BlacklistManager, auditLogger *pkglogger.AuditLogger) *BlacklistHandler {
	return &BlacklistHandler{
		blacklist:   blacklist,
		auditLogger: auditLogger,
	}
}

// BlockRequest represents the request body for a manual block
type BlockRequest struct {
	IPAddress     string `json:"ip_address" validate:"required,ip"`
	Reason        string `json:"reason" validate:"required,max=255"`
	DurationHours int    `json:"duration_hours" validate:"gte=0,lte=8760"`
}

// BlacklistEntryResponse represents a blacklist entry in HTTP responses
type BlacklistEntryResponse struct {
	ID             string     `json:"id"`
	IPAddress      string     `json:"ip_address"`
	Reason         string     `json:"reason"`
	BlockedBy      string     `json:"blocked_by"`
	AttemptedEmail *string    `json:"attempted_email,omitempty"`
	AttemptCount   int        `json:"attempt_count"`
	BlockedAt      time.Time  `json:"blocked_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ListResponse wraps a page of blacklist entries
type ListResponse struct {
	Entries []*BlacklistEntryResponse `json:"entries"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// List returns active blacklist entries, most recent first
// @Router /admin/blacklist [get]
func (h *BlacklistHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.blacklist.ListActive(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*BlacklistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ListResponse{Entries: out, Limit: limit, Offset: offset})
}

// Block adds a manual blacklist entry. duration_hours of 0 blocks
// indefinitely.
// @Router /admin/blacklist [post]
func (h *BlacklistHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	entry := &models.BlacklistEntry{
		IPAddress: req.IPAddress,
		Reason:    req.Reason,
		BlockedBy: claims.UserID,
	}

	if err := h.blacklist.BlockIfAbsent(r.Context(), entry, time.Duration(req.DurationHours)*time.Hour); err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "IP address is already blacklisted")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.auditLogger.LogIPBlacklisted(entry.IPAddress, entry.Reason, entry.BlockedBy, 0, entry.ExpiresAt)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// Unblock lifts every active block for the IP in the URL.
// @Router /admin/blacklist/{ip} [delete]
func (h *BlacklistHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	ipAddress := chi.URLParam(r, "ip")
	if ipAddress == "" {
		pkghttp.WriteBadRequest(w, "IP address is required")
		return
	}

	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	entries, err := h.blacklist.Unblock(r.Context(), ipAddress)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if entries == 0 {
		pkghttp.WriteNotFound(w, "IP address is not blacklisted")
		return
	}

	h.auditLogger.LogIPUnblocked(ipAddress, claims.UserID, entries)

	w.WriteHeader(http.StatusNoContent)
}

func toEntryResponse(entry *models.BlacklistEntry) *BlacklistEntryResponse {
	return &BlacklistEntryResponse{
		ID:             entry.ID,
		IPAddress:      entry.IPAddress,
		Reason:         entry.Reason,
		BlockedBy:      entry.BlockedBy,
		AttemptedEmail: entry.AttemptedEmail,
		AttemptCount:   entry.AttemptCount,
		BlockedAt:      entry.BlockedAt,
		ExpiresAt:      entry.ExpiresAt,
	}
}

func parseQueryInt(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return val
}
