package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/handlers"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// step inspects the request and either passes it on or marks it bad
type step func(re requestResponseStruct) requestResponseStruct

var GetHandler = Wrap(handlers.GetHandler)
var NewSessionHandler = WrapRateLimited(handlers.NewSessionHandler)
var GetSessionHandler = Wrap(handlers.GetSessionHandler)

var ChatHandler = WrapRateLimited(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostIngestHandler = WrapAuth(handlers.PostIngestHandler)

// Wrap adds the trace id and request metrics
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return chain(next, injectTrace)
}

// WrapRateLimited also applies the per ip token bucket
func WrapRateLimited(next http.HandlerFunc) http.HandlerFunc {
	return chain(next, injectTrace, rateLimiter)
}

// WrapAuth also requires the admin bearer token
func WrapAuth(next http.HandlerFunc) http.HandlerFunc {
	return chain(next, injectTrace, authenticate)
}

// WrapAuthHandler protects a mounted handler such as the MCP endpoint
func WrapAuthHandler(next http.Handler) http.Handler {
	return WrapAuth(next.ServeHTTP)
}

func chain(next http.HandlerFunc, steps ...step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		defer func() {
			metrics.HttpRequestsTotal.WithLabelValues(utils.RoutePattern(r), strconv.Itoa(rec.Status)).Inc() //metrics
		}()

		re := processRequest(requestResponseStruct{req: r, writer: rec}, steps)
		if !handleBadRequest(re) {
			return
		}
		next(rec, re.req)
	}
}

func processRequest(re requestResponseStruct, steps []step) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	for _, s := range steps {
		re = s(re)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	return re
}
