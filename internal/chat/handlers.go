package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stylevault/backend/internal/auth"
	apperrors "github.com/stylevault/backend/internal/errors"
)

type CreateSessionRequest struct {
	SessionName string         `json:"session_name,omitempty"`
	Context     ContextOptions `json:"context"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// CreateSession handles POST /chat/sessions.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	session, err := h.service.CreateSession(r.Context(), user, req.SessionName, req.Context)
	if err != nil {
		return apperrors.InternalError("failed to create chat session").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, map[string]string{
		"session_id": session.ID,
	})
	return nil
}

// SendMessage handles POST /chat/{session_id}/message.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if req.Message == "" {
		return apperrors.ValidationError("message is required")
	}

	reply, err := h.service.SendMessage(r.Context(), user, r.PathValue("session_id"), req.Message)
	if err != nil {
		return sessionError(err, "failed to send message")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{
		"response": reply,
	})
	return nil
}

// ListSessions handles GET /chat/sessions.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	sessions, err := h.service.ListSessions(r.Context(), user)
	if err != nil {
		return apperrors.InternalError("failed to list chat sessions").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, sessions)
	return nil
}

// History handles GET /chat/{session_id}.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	session, err := h.service.History(r.Context(), user, r.PathValue("session_id"))
	if err != nil {
		return sessionError(err, "failed to load chat history")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, session)
	return nil
}

// DeleteSession handles DELETE /chat/{session_id}.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	if err := h.service.DeleteSession(r.Context(), user, r.PathValue("session_id")); err != nil {
		return sessionError(err, "failed to delete chat session")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// ClearHistory handles POST /chat/{session_id}/clear.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return apperrors.InvalidToken()
	}

	if err := h.service.ClearHistory(r.Context(), user, r.PathValue("session_id")); err != nil {
		return sessionError(err, "failed to clear chat history")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func sessionError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return apperrors.SessionNotFound()
	case errors.Is(err, ErrNotSessionOwner):
		return apperrors.Forbidden("not authorized to access this chat")
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.InternalError(fallback).WithCause(err)
}
