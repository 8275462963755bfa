package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/alem-hub/xapi/internal/infrastructure/scheduler"
	"github.com/alem-hub/xapi/pkg/logger"
	"github.com/alem-hub/xapi/pkg/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecks maps a dependency name to its probe.
type HealthChecks map[string]func(ctx context.Context) error

// HealthStatus is the result of running every health check.
type HealthStatus struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Check runs every probe with a short timeout.
func (hc HealthChecks) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := HealthStatus{Healthy: true, Checks: make(map[string]string, len(hc))}
	for name, check := range hc {
		if err := check(ctx); err != nil {
			status.Healthy = false
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}
	return status
}

// handleHealth reports every dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]any{
		"status": status,
		"uptime": s.Uptime().String(),
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": status.Checks,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// EnqueueResponse is returned for an accepted statement batch.
type EnqueueResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids,omitempty"`
}

// handleEnqueueStatements handles POST /api/v1/statements. The body is one
// statement or an array of statements; the batch is queued all or nothing.
func (s *Server) handleEnqueueStatements(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", err.Error())
		return
	}

	statements, err := decodeStatements(body)
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "malformed_statement", "Statements could not be parsed", err.Error())
		return
	}
	if len(statements) == 0 {
		writeJSONError(w, http.StatusBadRequest, "empty_batch", "No statements in request")
		return
	}
	for i, st := range statements {
		if err := checkStatement(st); err != nil {
			writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_statement", "Statement rejected", fmt.Sprintf("statement %d: %v", i, err))
			return
		}
	}

	if err := s.deps.Outbox.Enqueue(r.Context(), statements...); err != nil {
		if xapi.IsValidation(err) {
			writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_statement", "Statement rejected", err.Error())
			return
		}
		logger.FromContext(r.Context()).Error("failed to enqueue statements", logger.Err(err))
		writeJSONError(w, http.StatusServiceUnavailable, "outbox_unavailable", "Statements could not be queued")
		return
	}

	resp := EnqueueResponse{Accepted: len(statements)}
	for _, st := range statements {
		if st.ID != nil {
			resp.IDs = append(resp.IDs, st.ID.String())
		}
	}
	writeJSON(w, r, http.StatusAccepted, resp)
}

// handleOutboxStatus handles GET /api/v1/outbox.
func (s *Server) handleOutboxStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.deps.Outbox.Len(r.Context())
	if err == nil {
		var dead int64
		dead, err = s.deps.Outbox.DeadLetterLen(r.Context())
		if err == nil {
			writeJSON(w, r, http.StatusOK, map[string]int64{"pending": pending, "dead_letter": dead})
			return
		}
	}
	logger.FromContext(r.Context()).Error("failed to read outbox length", logger.Err(err))
	writeJSONError(w, http.StatusServiceUnavailable, "outbox_unavailable", "Outbox could not be read")
}

// decodeStatements accepts a single JSON object or an array of objects.
func decodeStatements(body []byte) ([]*xapi.Statement, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] != '[' {
		st, err := xapi.ParseStatement(trimmed)
		if err != nil {
			return nil, err
		}
		return []*xapi.Statement{st}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	statements := make([]*xapi.Statement, 0, len(raw))
	for i, item := range raw {
		st, err := xapi.ParseStatement(item)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		statements = append(statements, st)
	}
	return statements, nil
}

// checkStatement requires the parts every stored statement carries.
func checkStatement(st *xapi.Statement) error {
	var missing []string
	if st.Actor == nil {
		missing = append(missing, "actor")
	}
	if st.Verb == nil {
		missing = append(missing, "verb")
	}
	if st.Target == nil {
		missing = append(missing, "object")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return st.Validate()
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// JobView is the JSON form of a registered job.
type JobView struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	Enabled     bool       `json:"enabled"`
	Running     bool       `json:"running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastError   string     `json:"last_error,omitempty"`
}

// JobRunView is the JSON form of a manual run.
type JobRunView struct {
	Job      string `json:"job"`
	Success  bool   `json:"success"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// handleListJobs handles GET /api/v1/jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	infos := s.deps.Scheduler.ListJobs()
	slices.SortFunc(infos, func(a, b scheduler.JobInfo) int { return strings.Compare(a.Name, b.Name) })

	views := make([]JobView, 0, len(infos))
	for _, info := range infos {
		view := JobView{
			Name:        info.Name,
			Description: info.Description,
			Schedule:    info.Schedule,
			Enabled:     info.Enabled,
			Running:     info.Running,
			LastRun:     optionalTime(info.LastRun),
			NextRun:     optionalTime(info.NextRun),
			RunCount:    info.RunCount,
			FailCount:   info.FailCount,
		}
		if info.LastResult != nil && info.LastResult.Error != nil {
			view.LastError = info.LastResult.Error.Error()
		}
		views = append(views, view)
	}
	writeJSON(w, r, http.StatusOK, views)
}

// handleRunJob handles POST /api/v1/jobs/{name}/run.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	result, err := s.deps.Scheduler.RunNow(r.Context(), name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeJSONError(w, http.StatusNotFound, "job_not_found", "No job named "+name)
		return
	}
	if result == nil {
		writeJSONErrorWithDetails(w, http.StatusInternalServerError, "job_failed", "Job could not run", errString(err))
		return
	}

	view := JobRunView{
		Job:      result.JobName,
		Success:  result.Success,
		Duration: result.Duration.String(),
		Error:    errString(result.Error),
	}
	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadGateway
	}
	writeJSON(w, r, code, view)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
