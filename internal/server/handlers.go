package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/osmike/cadence/internal/domain"
	"go.uber.org/zap"
)

type healthResponse struct {
	Status string              `json:"status"`
	Uptime string              `json:"uptime"`
	Timers domain.ManagerState `json:"timers"`
	Work   domain.ManagerState `json:"work"`
}

type timerResponse struct {
	ID          string            `json:"id"`
	Mode        domain.RepeatMode `json:"mode"`
	Period      string            `json:"period,omitempty"`
	Cron        string            `json:"cron,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	Running     bool              `json:"running"`
	Runs        int64             `json:"runs"`
	LastError   string            `json:"last_error,omitempty"`
}

type timersResponse struct {
	Manager string              `json:"manager"`
	State   domain.ManagerState `json:"state"`
	Timers  []timerResponse     `json:"timers"`
}

// handleHealth answers 200 while both managers can still execute, 503 once
// either has begun stopping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.timers != nil {
		resp.Timers = s.timers.State()
	}
	if s.work != nil {
		resp.Work = s.work.Stats().State
	}

	code := http.StatusOK
	if stopping(resp.Timers) || stopping(resp.Work) {
		resp.Status = "stopping"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	if s.timers == nil {
		http.NotFound(w, r)
		return
	}
	resp := timersResponse{
		Manager: s.timers.Name(),
		State:   s.timers.State(),
		Timers:  []timerResponse{},
	}
	for _, t := range s.timers.Timers() {
		tr := timerResponse{
			ID:          t.ID,
			Mode:        t.Mode,
			Cron:        t.CronExpr,
			ScheduledAt: t.ScheduledAt.UTC(),
			Running:     t.Running,
			Runs:        t.Runs,
			LastError:   t.LastError,
		}
		if t.Period > 0 {
			tr.Period = t.Period.String()
		}
		resp.Timers = append(resp.Timers, tr)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	if s.work == nil {
		http.NotFound(w, r)
		return
	}
	respondJSON(w, http.StatusOK, s.work.Stats())
}

type executionResponse struct {
	ID       string            `json:"id"`
	Manager  string            `json:"manager"`
	Kind     string            `json:"kind"`
	Status   domain.ExecStatus `json:"status"`
	StartAt  *time.Time        `json:"start_at,omitempty"`
	EndAt    time.Time         `json:"end_at"`
	Duration string            `json:"duration"`
	Error    string            `json:"error,omitempty"`
}

// handleExecutions lists the newest executions. ?limit=N sets the page size.
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	recent, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list executions", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}

	out := make([]executionResponse, 0, len(recent))
	for _, dto := range recent {
		er := executionResponse{
			ID:       dto.ID,
			Manager:  dto.Manager,
			Kind:     dto.Kind,
			Status:   dto.Status,
			EndAt:    dto.EndAt.UTC(),
			Duration: time.Duration(dto.ExecutionTime).String(),
		}
		if !dto.StartAt.IsZero() {
			start := dto.StartAt.UTC()
			er.StartAt = &start
		}
		if dto.Error != nil {
			er.Error = dto.Error.Error()
		}
		out = append(out, er)
	}
	respondJSON(w, http.StatusOK, out)
}

func stopping(st domain.ManagerState) bool {
	return st == domain.Stopping || st == domain.Stopped
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// loggingMiddleware logs every request at debug level.
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
