package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"case-console/internal/model"
	"case-console/pkg/apierror"
)

// maxJSONBody caps JSON request bodies; uploads go through multipart.
const maxJSONBody = 1 << 20

type sentinelMapping struct {
	target  error
	status  int
	code    string
	message string
	details bool
}

var sentinelErrors = []sentinelMapping{
	{target: model.ErrCaseNotFound, status: http.StatusNotFound, code: "NOT_FOUND", message: "Case not found"},
	{target: model.ErrImageNotFound, status: http.StatusNotFound, code: "NOT_FOUND", message: "Image not found"},
	{target: model.ErrUserNotFound, status: http.StatusNotFound, code: "NOT_FOUND", message: "User not found"},
	{target: model.ErrTokenNotFound, status: http.StatusUnauthorized, code: "UNAUTHORIZED", message: "Invalid or expired token"},
	{
		target:  model.ErrOrderConflict,
		status:  http.StatusConflict,
		code:    "ORDER_CONFLICT",
		message: "Order does not match the current catalog; reload and try again",
		details: true,
	},
}

func writeJSON(w http.ResponseWriter, status int, body model.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	writeJSON(w, status, model.OK(data, meta))
}

// writeError renders err as a failure envelope. Errors that are neither
// *apierror.APIError nor a known sentinel become a logged 500.
func writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)
	writeJSON(w, status, model.Fail(body.Code, body.Message, body.Details))
}

func classifyError(err error) (int, *model.APIError) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus, &model.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details}
	}

	for _, m := range sentinelErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		body := &model.APIError{Code: m.code, Message: m.message}
		if m.details {
			body.Details = err.Error()
		}
		return m.status, body
	}

	slog.Error("unhandled error", "error", err)
	return http.StatusInternalServerError, &model.APIError{Code: "INTERNAL_ERROR", Message: "Unexpected server error"}
}

// bind decodes the JSON body into target and answers 400 itself when
// that fails.
func bind(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeJSON(r, target); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(target); err != nil {
		return apierror.BadRequest("invalid JSON body", "")
	}
	return nil
}
