package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/services"
	"github.com/Dosada05/tournament-api/validation"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1_048_576 // 1MB

type jsonResponse map[string]interface{}

// patchErrorBody is the error payload for a failed patch operation.
type patchErrorBody struct {
	Operation int    `json:"operation"`
	Op        string `json:"op"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
}

// responder writes JSON responses and logs server-side failures.
type responder struct {
	logger *slog.Logger
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBodyBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func (rs responder) ok(w http.ResponseWriter, r *http.Request, status int, data interface{}, headers http.Header) {
	if err := writeJSON(w, status, data, headers); err != nil {
		rs.serverErrorResponse(w, r, err)
	}
}

func (rs responder) errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	if err := writeJSON(w, status, jsonResponse{"error": message}, nil); err != nil {
		rs.logger.Error("failed to write error response",
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
			slog.Any("error", err),
		)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (rs responder) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	rs.logger.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("url", r.URL.String()),
		slog.Any("error", err),
	)
	message := "the server encountered a problem and could not process your request"
	rs.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (rs responder) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	rs.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (rs responder) notFoundResponse(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "the requested resource could not be found"
	}
	rs.errorResponse(w, r, http.StatusNotFound, message)
}

func (rs responder) conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	rs.errorResponse(w, r, http.StatusConflict, message)
}

// mapServiceErrorToHTTP converts service errors into HTTP responses. Validation
// failures of a PATCH are 422; on every other method they reject the request
// with 400.
func (rs responder) mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	var opErr *patch.OperationError

	switch {
	case errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrGameNotFound):
		rs.notFoundResponse(w, r, err.Error())

	case errors.As(err, &opErr):
		rs.errorResponse(w, r, http.StatusBadRequest, patchErrorBody{
			Operation: opErr.Index,
			Op:        opErr.Op,
			Path:      opErr.Path,
			Reason:    opErr.Err.Error(),
		})

	case errors.Is(err, services.ErrValidationFailed):
		status := http.StatusBadRequest
		if r.Method == http.MethodPatch {
			status = http.StatusUnprocessableEntity
		}
		if errors.As(err, &verrs) {
			rs.errorResponse(w, r, status, verrs)
			return
		}
		rs.errorResponse(w, r, status, err.Error())

	case errors.Is(err, services.ErrIDMismatch),
		errors.Is(err, services.ErrSearchTermRequired),
		errors.Is(err, services.ErrInvalidTournamentID),
		errors.Is(err, services.ErrLogoContentType),
		errors.Is(err, patch.ErrEmptyDocument):
		rs.badRequestResponse(w, r, err)

	case errors.Is(err, services.ErrConcurrencyConflict):
		rs.conflictResponse(w, r, err.Error())

	case errors.Is(err, services.ErrLogoStorageUnavailable):
		rs.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())

	default:
		rs.serverErrorResponse(w, r, err)
	}
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %q", paramName, idStr)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", paramName)
	}
	return id, nil
}

// queryBool treats a missing parameter as false and rejects unparsable values.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s query parameter: %q", name, raw)
	}
	return v, nil
}
