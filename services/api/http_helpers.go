package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"larder/pkg/apperr"
)

type errorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Field     string    `json:"field,omitempty"`
	Rule      string    `json:"rule,omitempty"`
}

var errEmptyBody = apperr.Validation("body", apperr.RuleRequired, "request body required")

// isEmptyBody matches errEmptyBody by identity; apperr.Error compares by code, which every
// validation error shares.
func isEmptyBody(err error) bool {
	var appErr *apperr.Error
	return errors.As(err, &appErr) && appErr == errEmptyBody
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return apperr.Validation("body", apperr.RuleInvalidFormat, "malformed JSON body: "+err.Error())
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps err onto the public error envelope. Internal causes are logged, never echoed.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	status := appErr.Kind.HTTPStatus()

	message := appErr.Message
	if appErr.Kind == apperr.KindInternal {
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	}

	respondJSON(w, status, errorResponse{
		Code:      string(appErr.Code),
		Message:   message,
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
		Field:     appErr.Field,
		Rule:      appErr.Rule,
	})
}

// queryInt reads an optional integer query parameter, returning def when it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name, apperr.RuleInvalidFormat, name+" must be an integer")
	}
	return v, nil
}
