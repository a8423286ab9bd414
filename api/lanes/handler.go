// Package lanes exposes the drive-through entry and exit endpoints.
package lanes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kilianp07/carbonlane/api/respond"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
)

// Lane is the simulator surface used by the handlers.
type Lane interface {
	Enter(ctx context.Context, plate string) (lane.Entry, error)
	Exit(ctx context.Context) (lane.Entry, error)
	Pending(ctx context.Context) ([]lane.Entry, error)
	Recent(ctx context.Context, limit int) ([]lane.Entry, error)
}

type enterRequest struct {
	Plate string `json:"numberplate"`
}

// NewEnterHandler serves POST /car-entries/enter. The body is optional; a
// missing plate gets a simulated one.
func NewEnterHandler(l Lane, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req enterRequest
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				respond.Error(w, log, lane.InvalidInput("body", "malformed JSON"))
				return
			}
		}
		e, err := l.Enter(r.Context(), req.Plate)
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		respond.JSON(w, http.StatusOK, e)
	})
}

// NewExitHandler serves POST /car-entries/exit.
func NewExitHandler(l Lane, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, err := l.Exit(r.Context())
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		respond.JSON(w, http.StatusOK, e)
	})
}

// NewListHandler serves GET /car-entries?limit=N, newest first.
func NewListHandler(l Lane, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := respond.IntQuery(r, "limit", lane.DefaultRecentLimit)
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		entries, err := l.Recent(r.Context(), limit)
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		respond.JSON(w, http.StatusOK, nonNil(entries))
	})
}

// NewPendingHandler serves GET /car-entries/pending, oldest first.
func NewPendingHandler(l Lane, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, err := l.Pending(r.Context())
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		respond.JSON(w, http.StatusOK, nonNil(entries))
	})
}

func nonNil(entries []lane.Entry) []lane.Entry {
	if entries == nil {
		return []lane.Entry{}
	}
	return entries
}
