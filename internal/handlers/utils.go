package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/rightsbot/internal/adapter"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "err", err)
	}
}

func validateId(r *http.Request, id string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.WithTrace(r.Context()).Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(r.Context(), id)
}

// validateContext drops requests whose client already went away
func validateContext(r *http.Request) bool {
	if err := r.Context().Err(); err != nil {
		logRH.WithTrace(r.Context()).Warn("context error", "err", err, "remote", r.RemoteAddr)
		return false
	}
	return true
}

func traceFrom(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", err
	}

	targetDir := config.EnvOrDefault("UPLOAD_DIR", filepath.Join(root, "temporary_data"))
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", err
	}
	return targetDir, nil
}
