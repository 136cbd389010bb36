package adminhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/middleware"
	"github.com/MrEthical07/adminauth/principal"
)

const maxBodyBytes = 16 << 10

// StatusResponse is the body of GET /security/status. Durations are milliseconds.
type StatusResponse struct {
	Version             uint64    `json:"version"`
	HasPreviousSecret   bool      `json:"hasPreviousSecret"`
	LastRotation        time.Time `json:"lastRotation"`
	NextRotation        time.Time `json:"nextRotation"`
	RotationIntervalMs  int64     `json:"rotationInterval"`
	GracePeriodMs       int64     `json:"gracePeriod"`
	TimeUntilRotationMs int64     `json:"timeUntilRotation"`
	BlacklistedCount    int64     `json:"blacklistedCount"`
}

// RotateResponse is the body of POST /security/rotate.
type RotateResponse struct {
	RotationID   string    `json:"rotationId"`
	Version      uint64    `json:"version"`
	RotatedAt    time.Time `json:"rotatedAt"`
	NextRotation time.Time `json:"nextRotation"`
}

// BlacklistRequest is the body of POST /security/blacklist.
type BlacklistRequest struct {
	Token string `json:"token"`
}

// BlacklistResponse is the reply to POST /security/blacklist.
type BlacklistResponse struct {
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Stored      bool      `json:"stored"`
}

// CleanupResponse is the reply to POST /security/cleanup-blacklist.
type CleanupResponse struct {
	Removed int64 `json:"removed"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := a.engine.SecurityStatus(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		returnJSON(w, http.StatusOK, StatusResponse{
			Version:             st.Version,
			HasPreviousSecret:   st.HasPreviousSecret,
			LastRotation:        st.LastRotation,
			NextRotation:        st.NextRotation,
			RotationIntervalMs:  st.RotationInterval.Milliseconds(),
			GracePeriodMs:       st.GracePeriod.Milliseconds(),
			TimeUntilRotationMs: st.TimeUntilRotation.Milliseconds(),
			BlacklistedCount:    st.BlacklistedCount,
		})
	}
}

func (a *API) Permissions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		returnJSON(w, http.StatusOK, a.engine.PermissionMatrix())
	}
}

func (a *API) Rotate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := a.engine.ForceRotate(r.Context(), actor(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		returnJSON(w, http.StatusOK, RotateResponse{
			RotationID:   rec.ID,
			Version:      rec.Version,
			RotatedAt:    rec.RotatedAt,
			NextRotation: rec.NextRotation,
		})
	}
}

func (a *API) Blacklist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlacklistRequest
		if ok := a.decodeRequest(&req, w, r); !ok {
			return
		}
		if strings.TrimSpace(req.Token) == "" {
			writeError(w, http.StatusBadRequest)
			return
		}
		entry, err := a.engine.Blacklist(r.Context(), actor(r), req.Token)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		returnJSON(w, http.StatusOK, BlacklistResponse{
			Fingerprint: entry.Fingerprint,
			ExpiresAt:   entry.ExpiresAt,
			Stored:      entry.Stored,
		})
	}
}

func (a *API) CleanupBlacklist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := a.engine.CleanupBlacklist(r.Context(), actor(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		returnJSON(w, http.StatusOK, CleanupResponse{Removed: n})
	}
}

func (a *API) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		if ok := a.decodeRequest(&req, w, r); !ok {
			return
		}
		ctx := adminauth.WithClientIP(r.Context(), clientIP(r))
		pair, err := a.engine.Refresh(ctx, req.RefreshToken)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		returnJSON(w, http.StatusOK, pair)
	}
}

func (a *API) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized)
			return
		}
		if err := a.engine.Logout(r.Context(), token); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// fail maps err to a generic status and logs the cause.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	a.logger.Log(r.Context(), slogLevel(status), "admin request failed",
		"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeError(w, status)
}

func slogLevel(status int) slog.Level {
	if status >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelInfo
}

func statusFor(err error) int {
	switch {
	case adminauth.Retryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, adminauth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, adminauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, adminauth.ErrInsufficientPermission),
		errors.Is(err, adminauth.ErrInsufficientRole),
		errors.Is(err, adminauth.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, adminauth.ErrInvalidFormat),
		errors.Is(err, adminauth.ErrInvalidSignature),
		errors.Is(err, adminauth.ErrExpired),
		errors.Is(err, adminauth.ErrRevoked),
		errors.Is(err, adminauth.ErrWrongTokenType),
		errors.Is(err, adminauth.ErrAdminNotFound),
		errors.Is(err, adminauth.ErrInactiveAdmin),
		errors.Is(err, adminauth.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) decodeRequest(req any, w http.ResponseWriter, r *http.Request) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		a.logger.Debug("bad json request", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest)
		return false
	}
	return true
}

func returnJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int) {
	returnJSON(w, status, errorResponse{Error: strings.ToLower(http.StatusText(status))})
}

func actor(r *http.Request) string {
	if p, ok := principal.FromContext(r.Context()); ok {
		return p.SubjectID()
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
