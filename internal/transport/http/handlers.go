// Package httptransport is the thin HTTP layer over the audit service. It
// delegates to the service without embedding business logic so transport
// concerns remain isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chronicle/internal/audit"
	pkgerrors "chronicle/pkg/errors"
)

// AuditService is the service surface the transport depends on.
type AuditService interface {
	Log(ctx context.Context, op audit.Operation, rc audit.RequestContext) (string, error)
	Query(ctx context.Context, f audit.Filters, opts audit.QueryOptions) (audit.QueryPage, error)
	GenerateReport(ctx context.Context, criteria audit.ReportCriteria) (audit.Report, error)
	Dashboard(ctx context.Context, timeRange audit.DateRange) (audit.Dashboard, error)
	DetectAlerts(entries []audit.Entry) []audit.Alert
	ValidateCompliance(entries []audit.Entry, standards []string) audit.ComplianceReport
	Quarantined() []audit.Entry
	RequeueQuarantined() int
}

type Handler struct {
	svc    AuditService
	logger *slog.Logger
}

func NewHandler(svc AuditService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type operationPayload struct {
	TableName     string          `json:"tableName"`
	RecordID      string          `json:"recordId"`
	Action        string          `json:"action"`
	ChangeType    string          `json:"changeType,omitempty"`
	PreviousData  json.RawMessage `json:"previousData,omitempty"`
	NewData       json.RawMessage `json:"newData,omitempty"`
	ChangedFields []string        `json:"changedFields,omitempty"`
	AffectedRows  int             `json:"affectedRows,omitempty"`
}

type contextPayload struct {
	Source        string `json:"source,omitempty"`
	UserAgent     string `json:"userAgent,omitempty"`
	IPAddress     string `json:"ipAddress,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	UserEmail     string `json:"userEmail,omitempty"`
	UserRole      string `json:"userRole,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	RetentionDays int    `json:"retentionDays,omitempty"`
	DurationMs    int64  `json:"operationDuration,omitempty"`
	ErrorCode     string `json:"errorCode,omitempty"`
	WarningCount  int    `json:"warningCount,omitempty"`
}

type logRequest struct {
	Operation operationPayload `json:"operation"`
	Context   contextPayload   `json:"context"`
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	op := audit.Operation{
		TableName:     req.Operation.TableName,
		RecordID:      req.Operation.RecordID,
		Action:        audit.Action(req.Operation.Action),
		ChangeType:    req.Operation.ChangeType,
		PreviousData:  req.Operation.PreviousData,
		NewData:       req.Operation.NewData,
		ChangedFields: req.Operation.ChangedFields,
		AffectedRows:  req.Operation.AffectedRows,
	}
	rc := audit.RequestContext{
		Source:        req.Context.Source,
		UserAgent:     req.Context.UserAgent,
		IPAddress:     req.Context.IPAddress,
		SessionID:     req.Context.SessionID,
		UserID:        req.Context.UserID,
		UserEmail:     req.Context.UserEmail,
		UserRole:      req.Context.UserRole,
		RequestID:     req.Context.RequestID,
		CorrelationID: req.Context.CorrelationID,
		RetentionDays: req.Context.RetentionDays,
		DurationMs:    req.Context.DurationMs,
		ErrorCode:     req.Context.ErrorCode,
		WarningCount:  req.Context.WarningCount,
	}

	auditID, err := h.svc.Log(r.Context(), op, rc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"auditId": auditID,
	})
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := audit.Filters{
		TableName: q.Get("tableName"),
		RecordID:  q.Get("recordId"),
		Action:    audit.Action(q.Get("action")),
		UserID:    q.Get("userId"),
		UserEmail: q.Get("userEmail"),
		Source:    q.Get("source"),
		IPAddress: q.Get("ipAddress"),
		Severity:  audit.Severity(q.Get("severity")),
	}
	if start, end := q.Get("start"), q.Get("end"); start != "" && end != "" {
		s, err1 := time.Parse(time.RFC3339, start)
		e, err2 := time.Parse(time.RFC3339, end)
		if err1 != nil || err2 != nil {
			writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "start and end must be RFC3339 timestamps"))
			return
		}
		filters.DateRange = &audit.DateRange{Start: s, End: e}
	}

	opts := audit.QueryOptions{
		Cursor: q.Get("cursor"),
		Sort:   audit.SortDirection(q.Get("sortDirection")),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		opts.Limit = n
	}

	page, err := h.svc.Query(r.Context(), filters, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    page.Entries,
		"pagination": map[string]any{
			"nextCursor":  page.NextCursor,
			"hasNextPage": page.HasNextPage,
		},
		"metadata": map[string]any{
			"queryTimeMs": page.QueryTimeMs,
		},
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var criteria audit.ReportCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	report, err := h.svc.GenerateReport(r.Context(), criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  report,
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err1 := time.Parse(time.RFC3339, q.Get("start"))
	end, err2 := time.Parse(time.RFC3339, q.Get("end"))
	if err1 != nil || err2 != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "start and end must be RFC3339 timestamps"))
		return
	}
	dashboard, err := h.svc.Dashboard(r.Context(), audit.DateRange{Start: start, End: end})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"dashboard": dashboard,
	})
}

type alertsRequest struct {
	Logs []audit.Entry `json:"logs"`
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var req alertsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	alerts := h.svc.DetectAlerts(req.Logs)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"alerts":  alerts,
	})
}

type complianceRequest struct {
	Logs      []audit.Entry `json:"logs"`
	Standards []string      `json:"standards"`
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	var req complianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	report := h.svc.ValidateCompliance(req.Logs, req.Standards)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  report,
	})
}

func (h *Handler) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Quarantined()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
	})
}

func (h *Handler) handleRequeue(w http.ResponseWriter, r *http.Request) {
	n := h.svc.RequeueQuarantined()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"requeued": n,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError centralizes coded error translation so every endpoint returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pkgerrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    string(code),
			"message": err.Error(),
		},
	})
}
