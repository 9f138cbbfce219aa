package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/handlers"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

const traceHeader = "X-Trace-Id"

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusBadRequest, errorMessage: "request is empty"}
		return re
	}
	trace := req.Header.Get(traceHeader)
	if trace == "" || len(trace) > 128 {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, trace)
	req.Header.Set(traceHeader, trace)
	re.writer.Header().Set(traceHeader, trace)
	re.req = req.WithContext(ctx)
	return re
}

func authenticate(re requestResponseStruct) requestResponseStruct {
	if !IsValidBearerToken(re.req.Header.Get("Authorization"), config.AuthToken(), re.logger) {
		re.writer.Header().Set("WWW-Authenticate", `Bearer realm="rightsbot"`)
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusUnauthorized, errorMessage: "invalid token"}
		return re
	}
	re.logger.Debug("Authorized")
	return re
}

// IsValidBearerToken compares in constant time. An empty expected token rejects everything.
func IsValidBearerToken(authHeader string, expected string, log *logger_i.Logger) bool {
	if config.NoAuthBypass {
		log.Error("auth bypass is enabled")
		return true
	}
	if expected == "" {
		log.Error("No admin token configured", "secret", config.AuthTokenName)
		return false
	}
	if authHeader == "" {
		log.Warn("Empty authorization header")
		return false
	}
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		log.Warn("No Bearer header")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		log.Warn("Invalid authorization header")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func rateLimiter(re requestResponseStruct) requestResponseStruct {
	ip := clientIP(re.req)
	if !limiterInstance.Allow(ip) {
		re.logger.Warn("Rate limit exceeded", "ip", ip)
		re.writer.Header().Set("Retry-After", "1")
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "Rate limit exceeded, slow down",
		}
	}
	return re
}

// handleBadRequest writes the single error response of a rejected request
func handleBadRequest(re requestResponseStruct) bool {
	if re.badRequest.isBadRequest {
		re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", re.req.RemoteAddr)
		handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, "", re.badRequest.errorMessage)
		return false
	}
	return true
}
