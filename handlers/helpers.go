package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/go-chi/chi/v5"
)

type jsonResponse map[string]interface{}

const maxJSONBytes = 1_048_576 // 1MB

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxJSONBytes))

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
			return fmt.Errorf("body must not be larger than %d bytes", maxJSONBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // Паника, т.к. это ошибка программиста (передан не указатель)
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

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.Error("failed to write error response", slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "the requested resource could not be found"
	}
	errorResponse(w, r, http.StatusNotFound, message)
}

func conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusConflict, message)
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusForbidden, message)
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	var transition *models.TransitionError
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrMatchNotFound):
		notFoundResponse(w, r, err.Error())

	case errors.Is(err, services.ErrPermissionDenied):
		forbiddenResponse(w, r, err.Error())

	// Состояние изменилось или не позволяет операцию
	case errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrInvalidState):
		conflictResponse(w, r, err.Error())
	case errors.As(err, &transition):
		errorResponse(w, r, http.StatusUnprocessableEntity, jsonResponse{
			"message":        err.Error(),
			"event":          transition.Event,
			"current_status": transition.Current,
		})

	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrMissingArgument),
		errors.Is(err, models.ErrInvalidParticipant),
		errors.Is(err, models.ErrInvalidSchedule),
		errors.Is(err, storage.ErrUnsupportedContentType):
		badRequestResponse(w, r, err)

	case errors.Is(err, services.ErrNotImplemented):
		errorResponse(w, r, http.StatusNotImplemented, err.Error())
	case errors.Is(err, services.ErrStorageNotAvailable):
		errorResponse(w, r, http.StatusServiceUnavailable, err.Error())

	default:
		serverErrorResponse(w, r, err)
	}
}

func getIDFromURL(r *http.Request, paramName string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, paramName))
	if id == "" {
		return "", fmt.Errorf("missing %s in URL", paramName)
	}
	return id, nil
}

// currentUser returns the authenticated user id or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return "", false
	}
	return userID, true
}
