package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/factory-data-core/internal/apperr"
)

// Success triple carried by every 2xx envelope.
const (
	codeSuccess    = "FD-0000"
	reasonSuccess  = "SUCCESS"
	messageSuccess = "request processed successfully"
)

// Envelope is the uniform response body.
type Envelope struct {
	RequestID  string       `json:"request_id"`
	Code       string       `json:"code"`
	Reason     string       `json:"reason"`
	Message    string       `json:"message"`
	Pagination *Pagination  `json:"pagination,omitempty"`
	Data       any          `json:"data,omitempty"`
	Errors     []ErrorEntry `json:"errors,omitempty"`
}

// Pagination describes where a page sits in the result set.
type Pagination struct {
	FirstPage bool  `json:"first_page"`
	LastPage  bool  `json:"last_page"`
	Count     int64 `json:"count"`
}

// ErrorEntry is a finer-grained error raised by one component while the
// request as a whole still produced data, such as an SWM failure after a
// local commit.
type ErrorEntry struct {
	Component string `json:"component"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes data in a success envelope.
func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any, page *Pagination) {
	writeJSON(w, status, Envelope{
		RequestID:  requestIDFrom(r.Context()),
		Code:       codeSuccess,
		Reason:     reasonSuccess,
		Message:    messageSuccess,
		Pagination: page,
		Data:       data,
	})
}

// writeError maps err to its status and envelope. Unclassified errors are
// reported as internal errors; causes are logged, never returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writePartial(w, r, nil, err)
}

// writePartial writes an error envelope that still carries data. Mirror
// and session failures after a committed local change use it so the caller
// sees the stored record together with the SWM error.
func (s *Server) writePartial(w http.ResponseWriter, r *http.Request, data any, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.ErrInternal.Wrap(err)
	}
	status := statusFor(appErr)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"code", appErr.Code,
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
	} else {
		s.logger.Debug("request rejected",
			"code", appErr.Code,
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
	}

	env := Envelope{
		RequestID: requestIDFrom(r.Context()),
		Code:      appErr.Code,
		Reason:    appErr.Reason,
		Message:   appErr.Message,
		Data:      data,
	}
	if appErr.Kind == apperr.KindMirror || appErr.Kind == apperr.KindSession {
		env.Errors = []ErrorEntry{{Component: "swm", Code: appErr.Code, Message: appErr.Message}}
	}
	writeJSON(w, status, env)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation:
		if errors.Is(e, apperr.ErrAlreadyExists) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindMirror:
		return http.StatusBadGateway
	case apperr.KindSession:
		return http.StatusServiceUnavailable
	case apperr.KindAuth:
		if errors.Is(e, apperr.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
