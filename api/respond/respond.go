// Package respond writes JSON bodies and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
)

// NoOpenEntryMessage is returned when an exit finds the lane empty.
const NoOpenEntryMessage = "No car in drive-through to exit"

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Message writes an ErrorBody with the given status.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Error maps err to a status: invalid input and an empty lane are 400,
// everything else is logged and returned as 500.
func Error(w http.ResponseWriter, log logger.Logger, err error) {
	var in *lane.InputError
	switch {
	case errors.As(err, &in):
		Message(w, http.StatusBadRequest, in.Error())
	case errors.Is(err, lane.ErrInvalidInput):
		Message(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lane.ErrNoOpenEntry):
		Message(w, http.StatusBadRequest, NoOpenEntryMessage)
	default:
		if log != nil {
			log.Errorf("request failed: %v", err)
		}
		Message(w, http.StatusInternalServerError, err.Error())
	}
}

// IntQuery parses an optional integer query parameter.
func IntQuery(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, lane.InvalidInput(name, "%q is not an integer", s)
	}
	return v, nil
}
