package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/codec"
	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/importer"
	"github.com/FairForge/metaapi/internal/node"
)

// WebMessage is the envelope of every non-document response.
type WebMessage struct {
	HTTPStatus     string `json:"httpStatus"`
	HTTPStatusCode int    `json:"httpStatusCode"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	ErrorCode      string `json:"errorCode,omitempty"`
	Response       any    `json:"response,omitempty"`
}

func newWebMessage(code int, status, message string) *WebMessage {
	return &WebMessage{
		HTTPStatus:     http.StatusText(code),
		HTTPStatusCode: code,
		Status:         status,
		Message:        message,
	}
}

// statusFor maps the engine error taxonomy to HTTP. Unknown errors are
// internal failures.
func statusFor(err error) (int, string) {
	var (
		queryErr     engine.QueryParseError
		fieldErr     engine.FieldParseError
		badRequest   engine.BadRequestError
		invalidValue engine.InvalidValueError
		unknownType  engine.UnknownTypeError
		notFound     engine.NotFoundError
		denied       engine.AccessDeniedError
		readOnly     engine.ReadOnlyPropertyError
		noProperty   engine.PropertyNotFoundError
		mediaType    engine.UnsupportedMediaTypeError
		conflict     engine.ConflictError
	)
	switch {
	case errors.As(err, &queryErr), errors.As(err, &fieldErr), errors.As(err, &badRequest), errors.As(err, &invalidValue):
		return http.StatusBadRequest, "E1000"
	case errors.As(err, &unknownType), errors.As(err, &notFound):
		return http.StatusNotFound, "E1001"
	case errors.As(err, &denied):
		return http.StatusForbidden, "E1002"
	case errors.As(err, &readOnly), errors.As(err, &noProperty):
		return http.StatusUnprocessableEntity, "E1003"
	case errors.As(err, &mediaType):
		return http.StatusUnsupportedMediaType, "E1004"
	case errors.As(err, &conflict):
		return http.StatusConflict, "E1005"
	}
	return http.StatusInternalServerError, ""
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, errorCode := statusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
		message = "An unexpected error occurred, check the server log"
	}
	msg := newWebMessage(code, "ERROR", message)
	msg.ErrorCode = errorCode
	s.writeMessage(w, r, msg)
}

func (s *Server) writeMessage(w http.ResponseWriter, r *http.Request, msg *WebMessage) {
	f := responseFormat(r)
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(msg.HTTPStatusCode)
	if err := codec.RenderValue(w, f, "webMessage", msg); err != nil {
		s.logger.Warn("failed to write web message", zap.Error(err))
	}
}

// writeReport wraps an import report. Reports with errors are conflicts.
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, okCode int, report *importer.Report) {
	if report == nil {
		report = &importer.Report{Status: importer.StatusOK, TypeReports: []*importer.TypeReport{}}
	}
	code := okCode
	if report.Status != importer.StatusOK {
		code = http.StatusConflict
	}
	msg := newWebMessage(code, string(report.Status), "")
	if code == http.StatusConflict {
		msg.Message = "One or more errors occurred, please see full details in import report."
	}
	msg.Response = report
	s.writeMessage(w, r, msg)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, result *engine.WriteResult) {
	if result.Created && result.OK() {
		w.Header().Set("Location", result.Location)
		s.writeReport(w, r, http.StatusCreated, result.Report)
		return
	}
	s.writeReport(w, r, http.StatusOK, result.Report)
}

// render writes a document node in the negotiated format.
func (s *Server) render(w http.ResponseWriter, r *http.Request, n *node.Node) {
	f := responseFormat(r)
	w.Header().Set("Content-Type", f.ContentType())
	if r.Method == http.MethodGet {
		w.Header().Set("Cache-Control", "no-cache, private")
	}
	w.WriteHeader(http.StatusOK)
	if err := codec.Render(w, f, n); err != nil {
		s.logger.Warn("failed to render response", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
