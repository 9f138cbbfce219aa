package handlers

import (
	"embed"
	"errors"
	"net/http"

	"github.com/akolanti/rightsbot/internal/adapter"
	"github.com/akolanti/rightsbot/internal/adapter/utils"
)

//go:embed static/index.html
var staticFiles embed.FS

// GetHandler serves the chat page
func GetHandler(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		logRH.Error("Chat page missing from binary", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// NewSessionHandler godoc
// @Summary      Start a chat session
// @Description  Creates a transcript holding the assistant greeting and reports whether the chat engine is ready. The index build is started in the background when needed.
// @Tags         Sessions
// @Produce      json
// @Success      201  {object}  api.SessionResponse
// @Failure      500  {object}  api.JobResponse
// @Router       /sessions [post]
func NewSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	chatId, err := NewSession(r.Context())
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "", "could not start a session")
		return
	}
	transcript, pending, err := GetSession(r.Context(), chatId)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, chatId, "could not read the session")
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToSessionResponse(chatId, transcript, pending, EngineStatus()))
}

// GetSessionHandler godoc
// @Summary      Get a chat session
// @Description  Returns the transcript in chronological order, whether a message is still being answered and the engine status.
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Chat ID"
// @Success      200  {object}  api.SessionResponse
// @Failure      404  {object}  api.JobResponse
// @Router       /sessions/{id} [get]
func GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	chatId := utils.GetChiURLParam(r, "id")
	transcript, pending, err := GetSession(r.Context(), chatId)
	if errors.Is(err, ErrUnknownChat) {
		WriteErrorResponse(w, http.StatusNotFound, chatId, "Session not found")
		return
	}
	if err != nil {
		logRH.WithTrace(r.Context()).Error("Failed to read transcript", "chatId", chatId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, chatId, "could not read the session")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSessionResponse(chatId, transcript, pending, EngineStatus()))
}
