package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	apperrors "github.com/target/oidc-gate/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "rest_invalid_json", Message: err.Error()})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups the fields of a REST error body.
type ErrorParams struct {
	Code    int
	ErrCode string
	Message string
}

type restErrorData struct {
	Status int `json:"status"`
}

type restError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Data    restErrorData `json:"data"`
}

// WriteError writes a REST error: {"code", "message", "data": {"status"}}.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, restError{Code: p.ErrCode, Message: p.Message, Data: restErrorData{Status: p.Code}})
}

// writeDenied writes the REST response for a denied access decision.
func writeDenied(w http.ResponseWriter, d access.Decision) {
	if d == access.DeniedNotLoggedIn {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "rest_user_cannot_view", Message: "Authentication required"})
		return
	}
	WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "rest_cannot_view", Message: "You do not have access to this content"})
}

// writeAppError maps an application error onto a REST error.
func writeAppError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrNotFound) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "rest_not_found", Message: "Not found"})
		return
	}
	code := apperrors.GetCode(err)
	status, msg := code.HTTPStatus(), err.Error()
	if status >= http.StatusInternalServerError {
		msg = "Internal server error"
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code.RESTCode(), Message: msg})
}
