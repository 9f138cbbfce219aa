package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/rightsbot/internal/adapter"
	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/api"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/rag/ingest"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var logRH *logger_i.Logger

type newJobData struct {
	id               string
	chatId           string
	message          string
	traceId          string
	isDocumentIngest bool
	documentName     string
	documentSource   string
}

// ChatHandler godoc
// @Summary      Send a chat message
// @Description  Appends the message to the session transcript and queues a background job answering it. An empty chatID starts a new session.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest      true  "Chat Message and optional Chat ID"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data or chat ID"
// @Failure      409      {object}  api.JobResponse      "The previous message of this session is still being answered"
// @Failure      429      {object}  api.JobResponse      "Rate limit exceeded"
// @Failure      503      {object}  api.JobResponse      "No chat engine configured"
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request) {
		return
	}

	var requestData api.ChatRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the chat handler reader", "err", err)
		}
	}(request.Body)

	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
		logRH.WithTrace(request.Context()).Warn("Bad chat request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	jobId, chatId, err := StartChatTurn(request.Context(), requestData)
	if err != nil {
		code, message := chatErrorStatus(err)
		logRH.WithTrace(request.Context()).Warn("Chat turn rejected", "chatId", chatId, "code", code, "error", err)
		WriteErrorResponse(w, code, chatId, message)
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(jobId, chatId))
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(r, idString)

	logRH.WithTrace(r.Context()).Debug("Get status request", "jobId", idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler godoc
// @Summary      Upload a document for ingestion
// @Description  Receives a reference document via multipart/form-data, saves it to a temporary directory, and queues an ingestion job adding it to the index.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "PDF, DOCX, ODT, RTF, TXT, MD, CSV or JSON file"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing fields, unsupported type or file too large"
// @Failure      401  {object}  api.JobResponse "Missing or invalid bearer token"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage or Write Error"
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	log := logRH.WithTrace(r.Context())

	targetDir, err := getTargetDirectory()
	if err != nil {
		log.Error("Couldn't get target directory", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err = r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	if !ingest.Supported(fileMetadata.Filename) {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Unsupported document type")
		return
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(fileMetadata.Filename))
	tempFilePath := filepath.Join(targetDir, filename)
	if err = saveUpload(tempFilePath, fileReader); err != nil {
		log.Error("Failed to store upload", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}

	newJob := newJobData{
		id:               utils.GetNewUUID(),
		traceId:          traceFrom(r.Context()),
		isDocumentIngest: true,
		documentName:     docName,
		documentSource:   tempFilePath,
	}
	CreateNewJob(r.Context(), newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, ""))
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrUnknownChat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrTurnPending):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrEngineNotReady):
		if EngineStatus().Building {
			return http.StatusServiceUnavailable, "reference index is still being built"
		}
		return http.StatusServiceUnavailable, "no chat engine configured"
	default:
		return http.StatusInternalServerError, "could not save the message"
	}
}
