// Package api provides the HTTP surface of the price tracker: current
// prices, history series, display config, the admin triggers, and the
// WebSocket stream.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"metaltracker/config"
	"metaltracker/internal/gateway"
	"metaltracker/internal/history"
	"metaltracker/internal/model"
	"metaltracker/internal/source"
	"metaltracker/internal/tracker"
)

// Server bundles the handlers' dependencies.
type Server struct {
	svc    *tracker.Service
	hub    *gateway.Hub
	tokens *TokenIssuer
}

// NewServer creates the API server.
func NewServer(svc *tracker.Service, hub *gateway.Hub, tokens *TokenIssuer) *Server {
	return &Server{svc: svc, hub: hub, tokens: tokens}
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Router sets up HTTP routes for the API server.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/admin/token", s.handleAdminToken)
	mux.HandleFunc("/api/admin/refresh", s.handleAdminRefresh)
	mux.HandleFunc("/api/admin/settings", s.handleAdminSettings)

	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// handlePrices serves the current snapshot set. On a failed fetch it falls
// back to the newest history points flagged stale; with no history either,
// the client gets an explicit unable-to-fetch error, never a fabricated
// zero.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)

	cur, err := s.svc.Prices(r.Context())
	if err != nil {
		log.Printf("[api] prices fetch failed: %v", err)
		if fallback, ok := s.svc.Fallback(r.Context()); ok {
			writeJSON(w, http.StatusOK, fallback)
			return
		}
		writeError(w, http.StatusBadGateway, "unable to fetch current prices")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// handleHistory serves one metal's daily series:
// GET /api/history/{metal}?order=asc|desc (default asc).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)

	name := strings.TrimPrefix(r.URL.Path, "/api/history/")
	metal, err := model.ParseMetal(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown metal")
		return
	}

	order := history.Ascending
	if r.URL.Query().Get("order") == string(history.Descending) {
		order = history.Descending
	}

	points, err := s.svc.History(metal, order)
	if err != nil {
		log.Printf("[api] history read failed: %v", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metal":  metal,
		"points": points,
	})
}

// handleConfig exposes the display settings the presentation layer renders
// with. The API key never leaves the process.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)

	settings := s.svc.Settings()
	settings.APIKey = ""
	writeJSON(w, http.StatusOK, settings)
}

// handleAdminToken mints the per-action anti-forgery token.
func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)

	action := r.URL.Query().Get("action")
	if action != ActionClearCache && action != ActionRecordHistory {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"action": action,
		"token":  s.tokens.Token(action),
	})
}

type refreshRequest struct {
	Action string `json:"action"`
	Token  string `json:"token"`
	TOTP   string `json:"totp,omitempty"`
}

// handleAdminRefresh runs a manual trigger. The anti-forgery token is
// checked before any fetch happens.
func (s *Server) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !s.tokens.Validate(req.Action, req.Token) {
		writeError(w, http.StatusForbidden, "invalid or missing token")
		return
	}
	if s.tokens.TOTPEnabled() && !s.tokens.ValidateTOTP(req.TOTP) {
		writeError(w, http.StatusForbidden, "invalid one-time code")
		return
	}

	switch req.Action {
	case ActionClearCache:
		if err := s.svc.ClearCache(r.Context()); err != nil {
			log.Printf("[api] clear cache failed: %v", err)
			writeError(w, http.StatusInternalServerError, "clear cache failed")
			return
		}
		log.Printf("[api] cache cleared by manual trigger")

	case ActionRecordHistory:
		if err := s.svc.RecordHistory(r.Context(), tracker.TriggerManual); err != nil {
			log.Printf("[api] manual history tick failed: %v", err)
			code := http.StatusInternalServerError
			if errors.Is(err, source.ErrUpstreamUnavailable) || errors.Is(err, source.ErrUpstreamMalformed) {
				code = http.StatusBadGateway
			}
			writeError(w, code, "refresh failed: upstream unavailable")
			return
		}
		log.Printf("[api] history recorded by manual trigger")

	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminSettings replaces the tracker settings. Validation and TTL
// clamping happen inside UpdateSettings; the cache is invalidated before
// the new settings take effect.
func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req struct {
		Token    string          `json:"token"`
		TOTP     string          `json:"totp,omitempty"`
		Settings config.Settings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Settings changes ride the clear-cache action: both invalidate. The
	// second factor applies here as on the refresh triggers; a settings
	// swap is the most powerful admin action, not the least.
	if !s.tokens.Validate(ActionClearCache, req.Token) {
		writeError(w, http.StatusForbidden, "invalid or missing token")
		return
	}
	if s.tokens.TOTPEnabled() && !s.tokens.ValidateTOTP(req.TOTP) {
		writeError(w, http.StatusForbidden, "invalid one-time code")
		return
	}

	if err := s.svc.UpdateSettings(r.Context(), req.Settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
