package web

// errors.go turns service errors into JSON responses.
//
// The error flow:
//  1. Handler receives an error from core.Service
//  2. Calls s.respondError(w, r, err)
//  3. core.KindOf picks the status code, core.MapError the user message
//  4. Technical error + context is logged with request ID for correlation
//  5. The client gets the user message; raw error text only for client
//     errors or when SERVER_EXPOSE_ERRORS is set

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/logging"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = core.Invalid("upload", "no file provided")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Action      string `json:"action,omitempty"`
	Code        string `json:"code"`
	RecordCount *int64 `json:"record_count,omitempty"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindInvalidInput, core.KindUnsupportedTopology, core.KindNoColumnsSelected:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindBusy:
		return http.StatusServiceUnavailable
	case core.KindConnection, core.KindAuth:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes a sanitized JSON error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"kind", kind.String(),
		"code", userMsg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if kind.ClientError() || s.cfg.Server.ExposeErrors {
		resp.Error = err.Error()
	}
	if n, ok := core.CommittedRows(err); ok {
		resp.RecordCount = &n
	}
	if kind == core.KindBusy {
		w.Header().Set("Retry-After", "5")
	}

	writeJSON(w, r, status, resp)
}
