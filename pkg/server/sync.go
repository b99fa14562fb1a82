package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/tousync/pkg/controller"
	"github.com/raterudder/tousync/pkg/log"
)

const defaultChangesWindow = 7 * 24 * time.Hour

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	out, ok := s.syncer.Last()
	if !ok {
		writeJSONError(w, "no sync has run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	// a cycle that started is allowed to finish even if the caller goes away
	ctx := context.WithoutCancel(r.Context())
	out, err := s.syncer.Run(ctx)
	if err != nil {
		writeJSON(w, out, http.StatusInternalServerError)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func parseTimeParam(r *http.Request, name string, def time.Time) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) handleSnapshotChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = controller.SnapshotPrefix
	}
	end, ok := parseTimeParam(r, "end", time.Now())
	if !ok {
		writeJSONError(w, "invalid end", http.StatusBadRequest)
		return
	}
	start, ok := parseTimeParam(r, "start", end.Add(-defaultChangesWindow))
	if !ok {
		writeJSONError(w, "invalid start", http.StatusBadRequest)
		return
	}
	if !start.Before(end) {
		writeJSONError(w, "start must be before end", http.StatusBadRequest)
		return
	}

	changes, err := controller.SnapshotChanges(ctx, s.storage, prefix, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get snapshot changes", slog.Any("error", err))
		writeJSONError(w, "failed to get snapshot changes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, changes, http.StatusOK)
}
