package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-protocols/internal/audit"
	"github.com/nerrad567/gray-logic-protocols/internal/device"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/auth"
)

// ErrCodeTokensUnavailable reports that device tokens cannot be issued.
const ErrCodeTokensUnavailable = "tokens_unavailable"

// TokenResponse is the body of POST /protocol/devices/{id}/token.
type TokenResponse struct {
	DeviceID  string    `json:"device_id"`
	Transport string    `json:"transport"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleIssueToken signs a token for a catalogued device, bound to the
// device's transport. The lifetime comes from the device's token_ttl
// config (hours) when set, otherwise the service default.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeUnprocessable(w, ErrCodeTokensUnavailable, "token authentication is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	dev, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("looking up device", "device_id", id, "error", err)
		writeInternalError(w, "failed to look up device")
		return
	}

	ttl := s.tokenTTL
	if v, ok := dev.ConfigValue(auth.ConfigKeyTokenTTL); ok {
		hours, convErr := strconv.Atoi(v)
		if convErr != nil || hours <= 0 {
			writeUnprocessable(w, ErrCodeTokensUnavailable, "device "+auth.ConfigKeyTokenTTL+" must be a positive number of hours")
			return
		}
		ttl = time.Duration(hours) * time.Hour
	}

	token, expires, err := s.tokens.Issue(dev.ID, protocol.LookupTransport(dev.Transport), ttl)
	s.recordAudit(r.Context(), r, tokenAuditEntry(dev, expires, err))
	if err != nil {
		if errors.Is(err, auth.ErrSigningSecretMissing) {
			writeUnprocessable(w, ErrCodeTokensUnavailable, "token signing secret is not set")
			return
		}
		s.logger.Error("issuing device token", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}

	s.logger.Info("device token issued",
		"device_id", dev.ID,
		"transport", dev.Transport,
		"expires_at", expires,
	)
	writeJSON(w, http.StatusOK, TokenResponse{
		DeviceID:  dev.ID,
		Transport: dev.Transport,
		Token:     token,
		ExpiresAt: expires.UTC(),
	})
}

// tokenAuditEntry records an issued token's expiry, never the token.
func tokenAuditEntry(dev *device.Device, expires time.Time, err error) audit.Entry {
	details := map[string]any{"transport": dev.Transport}
	if err != nil {
		details["error"] = err.Error()
	} else {
		details["expires_at"] = expires.UTC().Format(time.RFC3339)
	}
	return audit.Entry{
		Action:     audit.ActionIssueToken,
		EntityType: audit.EntityDevice,
		EntityID:   dev.ID,
		Details:    details,
	}
}
