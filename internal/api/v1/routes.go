// Package v1 provides the administrative REST handlers of the comment sync service.
package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagepulse/comment-sync/internal/api/common"
	"github.com/pagepulse/comment-sync/internal/cursor"
	"github.com/pagepulse/comment-sync/internal/sink"
	"github.com/pagepulse/comment-sync/internal/sync/coordinator"
	"github.com/pagepulse/comment-sync/internal/versions"
)

// SelfTestValue is the cursor value written by the self-test
const SelfTestValue = cursor.SelfTestValue

// Routes holds the dependencies of the admin handlers
type Routes struct {
	store       cursor.Store
	sink        sink.Sink
	coordinator coordinator.Coordinator
	now         func() time.Time
}

// RoutesOption configures Routes
type RoutesOption func(*Routes)

// WithCoordinator exposes the coordinator's status under /sync/status
func WithCoordinator(c coordinator.Coordinator) RoutesOption {
	return func(rr *Routes) {
		rr.coordinator = c
	}
}

// WithClock overrides the clock used by update-now
func WithClock(now func() time.Time) RoutesOption {
	return func(rr *Routes) {
		if now != nil {
			rr.now = now
		}
	}
}

// NewRoutes creates a new Routes instance
func NewRoutes(store cursor.Store, rowSink sink.Sink, opts ...RoutesOption) *Routes {
	rr := &Routes{
		store: store,
		sink:  rowSink,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(rr)
	}
	return rr
}

// HealthRouter creates a router for health check endpoints
func (rr *Routes) HealthRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", rr.readinessHandler)
	r.Get("/version", versionHandler)

	return r
}

// Router creates the router for the /api endpoints
func (rr *Routes) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/cursor", func(r chi.Router) {
		r.Get("/current", rr.getCurrentCursor)
		r.Get("/status", rr.getCursorStatus)
		r.Post("/reset", rr.resetCursor)
		r.Post("/update/{epochSeconds}", rr.updateCursor)
		r.Post("/update-now", rr.updateCursorToNow)
		r.Post("/self-test", rr.selfTest)
	})

	r.Get("/sync/status", rr.getSyncStatus)

	r.Get("/sink/health", rr.getSinkHealth)
	r.Post("/sink/append", rr.appendRow)

	return r
}

// healthHandler handles GET /health
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler handles GET /readiness: the cursor store must answer and the sink must be ready
func (rr *Routes) readinessHandler(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{
		Status:       "ready",
		StoreHealthy: rr.store.HealthCheck(r.Context()),
		SinkReady:    true,
	}

	if rr.sink != nil {
		if err := rr.sink.Readiness(r.Context()); err != nil {
			resp.SinkReady = false
			resp.Error = err.Error()
		}
	}

	if !resp.StoreHealthy || !resp.SinkReady {
		resp.Status = "not ready"
		common.WriteJSONResponse(w, resp, http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// versionHandler handles GET /version
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// getCurrentCursor handles GET /api/cursor/current
func (rr *Routes) getCurrentCursor(w http.ResponseWriter, r *http.Request) {
	value := rr.store.Get(r.Context())
	common.WriteJSONResponse(w, CursorResponse{
		Timestamp:    value,
		Instant:      instantOf(value),
		HasTimestamp: value > 0,
		StoreHealthy: rr.store.HealthCheck(r.Context()),
	}, http.StatusOK)
}

// getCursorStatus handles GET /api/cursor/status
func (rr *Routes) getCursorStatus(w http.ResponseWriter, r *http.Request) {
	st := rr.store.Status(r.Context())

	resp := CursorStatusResponse{
		CursorResponse: CursorResponse{
			Timestamp:    st.Value,
			Instant:      instantOf(st.Value),
			HasTimestamp: st.HasValue && st.Value > 0,
			StoreHealthy: st.Healthy,
		},
		LeaseActive: st.LeaseActive,
		Status:      "success",
	}
	if !st.Healthy {
		resp.Status = "error"
		common.WriteJSONResponse(w, resp, http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// resetCursor handles POST /api/cursor/reset
func (rr *Routes) resetCursor(w http.ResponseWriter, r *http.Request) {
	if err := rr.store.Reset(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Failed to reset cursor", "error", err)
		common.WriteErrorResponse(w, "Failed to reset cursor", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, MessageResponse{
		Message: "Cursor reset. Next sync will fetch all data.",
		Status:  "success",
	}, http.StatusOK)
}

// updateCursor handles POST /api/cursor/update/{epochSeconds}
func (rr *Routes) updateCursor(w http.ResponseWriter, r *http.Request) {
	value, err := common.ParseEpochSecondsParam(r, "epochSeconds")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rr.overwriteAndVerify(w, r, value, "Cursor updated successfully")
}

// updateCursorToNow handles POST /api/cursor/update-now
func (rr *Routes) updateCursorToNow(w http.ResponseWriter, r *http.Request) {
	rr.overwriteAndVerify(w, r, uint64(rr.now().Unix()), "Cursor updated to current time")
}

func (rr *Routes) overwriteAndVerify(w http.ResponseWriter, r *http.Request, value uint64, message string) {
	ctx := r.Context()
	verified, err := cursor.OverwriteAndVerify(ctx, rr.store, value)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to update cursor", "cursor", value, "error", err)
		common.WriteErrorResponse(w, "Failed to update cursor", http.StatusInternalServerError)
		return
	}

	resp := CursorUpdateResponse{
		Message:           message,
		Timestamp:         value,
		Instant:           formatInstant(value),
		VerifiedTimestamp: verified,
		UpdateSuccessful:  verified == value,
		Status:            "success",
	}
	if !resp.UpdateSuccessful {
		resp.Status = "warning"
		resp.Warning = fmt.Sprintf("Cursor update verification failed. Expected: %d, Got: %d", value, verified)
	}
	slog.InfoContext(ctx, "Cursor updated manually", "cursor", value, "verified", verified)
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// selfTest handles POST /api/cursor/self-test
func (rr *Routes) selfTest(w http.ResponseWriter, r *http.Request) {
	res := cursor.SelfTest(r.Context(), rr.store)

	resp := SelfTestResponse{
		Success:  res.Success,
		Written:  res.Written,
		Read:     res.Read,
		Restored: res.Restored,
		Status:   "failed",
	}
	if res.Success {
		resp.Status = "success"
	}
	if res.Err != nil {
		slog.WarnContext(r.Context(), "Cursor self-test reported a problem", "error", res.Err)
		resp.Error = res.Err.Error()
	}

	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// getSyncStatus handles GET /api/sync/status
func (rr *Routes) getSyncStatus(w http.ResponseWriter, _ *http.Request) {
	if rr.coordinator == nil {
		common.WriteErrorResponse(w, "Sync coordinator is not running", http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, rr.coordinator.Status(), http.StatusOK)
}

// getSinkHealth handles GET /api/sink/health
func (rr *Routes) getSinkHealth(w http.ResponseWriter, r *http.Request) {
	if rr.sink == nil {
		common.WriteJSONResponse(w, SinkHealthResponse{Status: "NOT OK", Error: "no sink configured"}, http.StatusServiceUnavailable)
		return
	}
	if err := rr.sink.Readiness(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Sink health check failed", "error", err)
		common.WriteJSONResponse(w, SinkHealthResponse{Status: "NOT OK", Error: err.Error()}, http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, SinkHealthResponse{Status: "OK"}, http.StatusOK)
}

// appendRow handles POST /api/sink/append, writing a caller-supplied row
func (rr *Routes) appendRow(w http.ResponseWriter, r *http.Request) {
	if rr.sink == nil {
		common.WriteErrorResponse(w, "no sink configured", http.StatusServiceUnavailable)
		return
	}

	var row sink.Row
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&row); err != nil {
		common.WriteErrorResponse(w, "Invalid row: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.sink.AppendRow(r.Context(), row); err != nil {
		slog.ErrorContext(r.Context(), "Manual append failed", "comment_id", row.CommentID, "error", err)
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, MessageResponse{Message: "Row appended", Status: "ok"}, http.StatusOK)
}

func formatInstant(epochSeconds uint64) string {
	return time.Unix(int64(epochSeconds), 0).UTC().Format(time.RFC3339)
}

func instantOf(epochSeconds uint64) *string {
	if epochSeconds == 0 {
		return nil
	}
	s := formatInstant(epochSeconds)
	return &s
}
