package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/akolanti/rightsbot/internal/data/store"
)

func TestChatErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty message", ErrEmptyMessage, http.StatusBadRequest},
		{"unknown chat", ErrUnknownChat, http.StatusBadRequest},
		{"transcript expired before append", fmt.Errorf("append user message: %w", store.ErrUnknownChat), http.StatusBadRequest},
		{"pending turn", ErrTurnPending, http.StatusConflict},
		{"engine not ready", ErrEngineNotReady, http.StatusServiceUnavailable},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := chatErrorStatus(tt.err); got != tt.want {
				t.Errorf("chatErrorStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
