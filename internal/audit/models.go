// Package audit implements the audit logging and compliance batching engine:
// entry construction, criticality routing, deferred batch persistence with
// bounded retry, trail queries, reporting, compliance scoring, and security
// alert detection.
package audit

import (
	"encoding/json"
	"time"
)

// Action enumerates the mutation kinds captured by the trail.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Valid reports whether the action is one of the known mutation kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// Severity is a coarse urgency classification derived from the entry's
// action and change scope.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ComplianceFlag tags an entry as relevant to a named regulatory concern.
// Flags are derived deterministically and are never settable by callers.
type ComplianceFlag string

const (
	FlagGDPRRelevant    ComplianceFlag = "gdpr_relevant"
	FlagFinancialData   ComplianceFlag = "financial_data_change"
	FlagAutomatedChange ComplianceFlag = "automated_change"
)

// Well-known change types with classification significance.
const (
	ChangeTypeSecurityCritical = "security_critical"
	ChangeTypePermissionChange = "permission_change"
	ChangeTypeFinancialData    = "financial_data"
	ChangeTypePaymentUpdate    = "payment_update"
)

// Metadata is the free-form numeric/string bag attached to an entry.
type Metadata struct {
	DurationMs   int64  `json:"durationMs,omitempty"`
	AffectedRows int    `json:"affectedRows,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	WarningCount int    `json:"warningCount,omitempty"`
}

// Entry is the immutable record describing one business mutation and its
// full context. Once persisted it is never updated or deleted; store-side
// expiry via TTL is the only removal path.
type Entry struct {
	ID         string `json:"id"`
	TableName  string `json:"tableName"`
	RecordID   string `json:"recordId"`
	Action     Action `json:"action"`
	ChangeType string `json:"changeType,omitempty"`

	PreviousData  json.RawMessage `json:"previousData,omitempty"`
	NewData       json.RawMessage `json:"newData,omitempty"`
	ChangedFields []string        `json:"changedFields,omitempty"`

	Source    string `json:"source,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	UserRole  string `json:"userRole,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Owner     string    `json:"owner"`

	// TTL is the epoch-seconds instant after which the entry is eligible
	// for store-side expiry. Always strictly greater than Timestamp.
	TTL int64 `json:"ttl"`

	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId"`

	Severity        Severity         `json:"severity"`
	ComplianceFlags []ComplianceFlag `json:"complianceFlags,omitempty"`
	Metadata        Metadata         `json:"metadata"`
}

// HasFlag reports whether the entry carries the given compliance flag.
func (e Entry) HasFlag(flag ComplianceFlag) bool {
	for _, f := range e.ComplianceFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Operation describes a raw business mutation presented to the engine.
type Operation struct {
	TableName     string
	RecordID      string
	Action        Action
	ChangeType    string
	PreviousData  json.RawMessage
	NewData       json.RawMessage
	ChangedFields []string
	AffectedRows  int
}

// RequestContext carries ambient actor and request information at the moment
// a mutation occurs.
type RequestContext struct {
	Source        string
	UserAgent     string
	IPAddress     string
	SessionID     string
	UserID        string
	UserEmail     string
	UserRole      string
	RequestID     string
	CorrelationID string

	// RetentionDays overrides the default retention window for non-critical
	// entries. Ignored when the long window applies.
	RetentionDays int

	DurationMs   int64
	ErrorCode    string
	WarningCount int
}

// DateRange bounds a query or report window. Both ends are inclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Filters selects entries from the trail. Zero-valued fields are ignored;
// set fields combine conjunctively.
type Filters struct {
	TableName string     `json:"tableName,omitempty"`
	RecordID  string     `json:"recordId,omitempty"`
	Action    Action     `json:"action,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	UserEmail string     `json:"userEmail,omitempty"`
	DateRange *DateRange `json:"dateRange,omitempty"`
	Source    string     `json:"source,omitempty"`
	IPAddress string     `json:"ipAddress,omitempty"`
	Severity  Severity   `json:"severity,omitempty"`
}

// QueryOptions tunes pagination for trail queries.
type QueryOptions struct {
	Limit  int           `json:"limit,omitempty"`
	Cursor string        `json:"cursor,omitempty"`
	Sort   SortDirection `json:"sortDirection,omitempty"`
}

// QueryPage is one page of query results.
type QueryPage struct {
	Entries     []Entry `json:"entries"`
	NextCursor  string  `json:"nextCursor,omitempty"`
	HasNextPage bool    `json:"hasNextPage"`
	QueryTimeMs int64   `json:"queryTimeMs"`
}

// ReportCriteria selects the window and scope of an audit report.
type ReportCriteria struct {
	DateRange      DateRange `json:"dateRange"`
	TableName      string    `json:"tableName,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	Actions        []Action  `json:"actions,omitempty"`
	IncludeDetails bool      `json:"includeDetails,omitempty"`
}

// ReportSummary carries the aggregate statistics of a report window.
type ReportSummary struct {
	TotalEntries    int            `json:"totalEntries"`
	DistinctUsers   int            `json:"distinctUsers"`
	DistinctTables  int            `json:"distinctTables"`
	ActionBreakdown map[Action]int `json:"actionBreakdown"`
}

// Report is the output of GenerateReport.
type Report struct {
	Criteria         ReportCriteria `json:"criteria"`
	Summary          ReportSummary  `json:"summary"`
	Entries          []Entry        `json:"entries,omitempty"`
	SkippedRecords   int            `json:"skippedRecords,omitempty"`
	GeneratedAt      time.Time      `json:"generatedAt"`
	GenerationTimeMs int64          `json:"generationTimeMs"`
}

// ActivityCount pairs a subject (user or table) with its operation count.
type ActivityCount struct {
	Subject string `json:"subject"`
	Count   int    `json:"count"`
}

// HourlyBucket is one time-bucketed operation count in a dashboard.
type HourlyBucket struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

// Dashboard is the output of the dashboard aggregator.
type Dashboard struct {
	TimeRange       DateRange       `json:"timeRange"`
	TotalOperations int             `json:"totalOperations"`
	ActionBreakdown map[Action]int  `json:"actionBreakdown"`
	HourlyActivity  []HourlyBucket  `json:"hourlyActivity"`
	TopUsers        []ActivityCount `json:"topUsers"`
	TopTables       []ActivityCount `json:"topTables"`
	ErrorRate       float64         `json:"errorRate"`
	SkippedRecords  int             `json:"skippedRecords,omitempty"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// Finding is a single compliance rule violation.
type Finding struct {
	Standard    string   `json:"standard"`
	Rule        string   `json:"rule"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	EntryID     string   `json:"entryId,omitempty"`
}

// ComplianceReport scores a set of entries against named standards.
type ComplianceReport struct {
	Standards         []string  `json:"standards"`
	ValidationDate    time.Time `json:"validationDate"`
	TotalLogsReviewed int       `json:"totalLogsReviewed"`
	ComplianceScore   int       `json:"complianceScore"`
	Findings          []Finding `json:"findings"`
	Recommendations   []string  `json:"recommendations"`
}

// Alert is an advisory finding produced by scanning a window of entries for
// suspicious patterns.
type Alert struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	Severity           Severity  `json:"severity"`
	Description        string    `json:"description"`
	Timestamp          time.Time `json:"timestamp"`
	AffectedUsers      []string  `json:"affectedUsers,omitempty"`
	RecommendedActions []string  `json:"recommendedActions,omitempty"`
}
