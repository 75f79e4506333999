// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/seedlab/seedlab/internal/api/problem"
	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/log"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorShape struct {
	status int
	title  string
	code   string
}

var errorShapes = map[apperr.Kind]errorShape{
	apperr.KindInvalid:      {http.StatusBadRequest, "Bad Request", "INVALID_INPUT"},
	apperr.KindUnauthorized: {http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED"},
	apperr.KindForbidden:    {http.StatusForbidden, "Forbidden", "FORBIDDEN"},
	apperr.KindNotFound:     {http.StatusNotFound, "Not Found", "NOT_FOUND"},
	apperr.KindConflict:     {http.StatusConflict, "Conflict", "CONFLICT"},
	apperr.KindLocked:       {http.StatusLocked, "Locked", "ACCOUNT_LOCKED"},
	apperr.KindRateLimited:  {http.StatusTooManyRequests, "Too Many Requests", "RATE_LIMITED"},
}

// writeError maps err onto a problem response. Unclassified errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	shape, ok := errorShapes[kind]
	if !ok {
		log.FromContext(r.Context()).Error().
			Err(err).
			Str(log.FieldEvent, "request.failed").
			Str(log.FieldMethod, r.Method).
			Str(log.FieldPath, r.URL.Path).
			Msg("unhandled error")
		problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error",
			"INTERNAL", "An unexpected error occurred.", nil)
		return
	}
	var extra map[string]any
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		extra = map[string]any{"errors": fields}
	}
	problem.Write(w, r, shape.status, "lims/"+kind.String(), shape.title, shape.code, apperr.Message(err), extra)
}

// decodeJSON strictly decodes a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON but accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return badBody(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Invalid("request body must contain a single JSON object")
	}
	return nil
}

func badBody(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return apperr.Invalid("request body is empty")
	case errors.As(err, &syntaxErr):
		return apperr.Invalid("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return apperr.Invalid("invalid value for field %q", typeErr.Field).WithField(typeErr.Field, "wrong type")
	case errors.As(err, &maxErr):
		return apperr.Invalid("request body exceeds %d bytes", maxErr.Limit)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperr.Invalid("unknown field %q", field).WithField(field, "unknown field")
	default:
		return apperr.Invalid("invalid request body: %v", err)
	}
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

var errRouteNotFound = apperr.New(apperr.KindNotFound, "no such route")
