package http

import (
	"encoding/json"
	"net/http"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/app"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// SessionHandler exposes the host-facing HTTP surface: creating a
// session and minting a fresh ticket for an existing one. Teacher
// identity itself is verified upstream; the engine only receives the
// opaque host id the caller was authorized as.
type SessionHandler struct {
	engine *app.Engine
}

func NewSessionHandler(engine *app.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

// Register installs the routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("POST /api/sessions/{id}/ticket", h.mintTicket)
}

type createSessionRequest struct {
	HostID   string          `json:"hostId"`
	Settings domain.Settings `json:"settings"`
}

type createSessionResponse struct {
	SessionID string          `json:"sessionId"`
	Code      string          `json:"code"`
	Ticket    string          `json:"ticket"`
	Settings  domain.Settings `json:"settings"`
}

func (h *SessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorPayload{Code: codeMalformed, Detail: "invalid request body"})
		return
	}
	snap, ticket, err := h.engine.CreateSession(r.Context(), req.HostID, req.Settings)
	if err != nil {
		writeError(w, statusFor(err), errorFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: snap.ID,
		Code:      snap.Code,
		Ticket:    ticket,
		Settings:  snap.Settings,
	})
}

type mintTicketRequest struct {
	HostID string `json:"hostId"`
}

type mintTicketResponse struct {
	Ticket string `json:"ticket"`
}

func (h *SessionHandler) mintTicket(w http.ResponseWriter, r *http.Request) {
	var req mintTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorPayload{Code: codeMalformed, Detail: "invalid request body"})
		return
	}
	ticket, err := h.engine.MintTicket(r.Context(), r.PathValue("id"), req.HostID)
	if err != nil {
		writeError(w, statusFor(err), errorFor(err))
		return
	}
	writeJSON(w, http.StatusOK, mintTicketResponse{Ticket: ticket})
}

func statusFor(err error) int {
	switch errorFor(err).Code {
	case codeAuthRequired, codeInvalidTicket:
		return http.StatusUnauthorized
	case codeSessionNotFound, codePlayerNotFound:
		return http.StatusNotFound
	case codeMalformed, codeInvalidName:
		return http.StatusBadRequest
	case codeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, payload errorPayload) {
	writeJSON(w, status, payload)
}
