package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-forwarder/core"
)

type validator interface {
	Validate() error
}

func validate(msg any) error {
	if v, ok := msg.(validator); ok {
		return v.Validate()
	}
	return nil
}

func execute[T any](ctx context.Context, handler gocmd.Commander[T], msg T) error {
	if err := validate(msg); err != nil {
		return err
	}
	return handler.Execute(ctx, msg)
}

// executeResult runs a command and returns the value it stored in the result
// collector.
func executeResult[R any, T any](ctx context.Context, handler gocmd.Commander[T], msg T) (R, error) {
	var zero R
	result := gocmd.NewResult[R]()
	if err := execute(gocmd.ContextWithResult(ctx, result), handler, msg); err != nil {
		return zero, err
	}
	out, _ := result.Load()
	return out, nil
}

func query[R any, T any](ctx context.Context, handler gocmd.Querier[T, R], msg T) (R, error) {
	if err := validate(msg); err != nil {
		var zero R
		return zero, err
	}
	return handler.Query(ctx, msg)
}

func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, target any) error {
	body := http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	defer body.Close()

	decoder := json.NewDecoder(body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("body", "request body is required")
		}
		return badRequest("body", "invalid json: "+err.Error())
	}
	return nil
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("httpapi: encode response failed", "error", err)
	}
}

// writeError renders the go-errors envelope. The HTTP status comes from the
// mapped error code.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	mapped := core.MapServiceError(err)
	if mapped == nil {
		mapped = goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ServiceErrorInternal)
	}
	if requestID := middleware.GetReqID(req.Context()); requestID != "" {
		mapped.RequestID = requestID
	}
	status := mapped.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error("httpapi: request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"text_code", mapped.TextCode,
			"error", err,
		)
	}
	r.writeJSON(w, status, mapped.ToErrorResponse(false, nil))
}

func badRequest(field string, message string) error {
	return goerrors.NewValidation("httpapi: invalid request", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput)
}

func pathID(req *http.Request) string {
	return strings.TrimSpace(chi.URLParam(req, "id"))
}

// queryLimit reads ?limit=. Missing means 0, which the service treats as no
// limit.
func queryLimit(req *http.Request) (int, error) {
	raw := strings.TrimSpace(req.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, badRequest("limit", "limit must be a non-negative integer")
	}
	return limit, nil
}
