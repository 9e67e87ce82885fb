package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chronicle/internal/audit/expr"
)

// SortDirection orders query results by timestamp.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Record is the wire shape persisted by stores. Snapshot fields are opaque
// serialized text blobs; the query engine deserializes them on read.
type Record struct {
	ID              string
	TableName       string
	RecordID        string
	Action          string
	ChangeType      string
	PreviousData    string
	NewData         string
	ChangedFields   string
	Source          string
	UserAgent       string
	IPAddress       string
	SessionID       string
	UserID          string
	UserEmail       string
	UserRole        string
	Timestamp       time.Time
	Owner           string
	TTL             int64
	RequestID       string
	CorrelationID   string
	Severity        string
	ComplianceFlags string
	DurationMs      int64
	AffectedRows    int
	ErrorCode       string
	WarningCount    int
}

// ListQuery is the store-facing form of a trail query: a conjunction of
// predicates plus pagination.
type ListQuery struct {
	Predicates []expr.Predicate
	Limit      int
	Cursor     string
	Sort       SortDirection
}

// ListPage is one page of store records. An empty NextCursor means the
// result set is exhausted.
type ListPage struct {
	Records    []Record
	NextCursor string
}

// Store is the record store contract. The engine only ever creates and
// lists records; the trail has no update or delete verbs.
type Store interface {
	Create(ctx context.Context, rec Record) error
	List(ctx context.Context, q ListQuery) (ListPage, error)
}

// recordFromEntry serializes an entry into its persisted shape.
func recordFromEntry(e Entry) Record {
	rec := Record{
		ID:            e.ID,
		TableName:     e.TableName,
		RecordID:      e.RecordID,
		Action:        string(e.Action),
		ChangeType:    e.ChangeType,
		PreviousData:  string(e.PreviousData),
		NewData:       string(e.NewData),
		Source:        e.Source,
		UserAgent:     e.UserAgent,
		IPAddress:     e.IPAddress,
		SessionID:     e.SessionID,
		UserID:        e.UserID,
		UserEmail:     e.UserEmail,
		UserRole:      e.UserRole,
		Timestamp:     e.Timestamp,
		Owner:         e.Owner,
		TTL:           e.TTL,
		RequestID:     e.RequestID,
		CorrelationID: e.CorrelationID,
		Severity:      string(e.Severity),
		DurationMs:    e.Metadata.DurationMs,
		AffectedRows:  e.Metadata.AffectedRows,
		ErrorCode:     e.Metadata.ErrorCode,
		WarningCount:  e.Metadata.WarningCount,
	}
	if len(e.ChangedFields) > 0 {
		b, _ := json.Marshal(e.ChangedFields)
		rec.ChangedFields = string(b)
	}
	if len(e.ComplianceFlags) > 0 {
		b, _ := json.Marshal(e.ComplianceFlags)
		rec.ComplianceFlags = string(b)
	}
	return rec
}

// entryFromRecord deserializes the stored blobs back into structured form.
func entryFromRecord(rec Record) (Entry, error) {
	e := Entry{
		ID:            rec.ID,
		TableName:     rec.TableName,
		RecordID:      rec.RecordID,
		Action:        Action(rec.Action),
		ChangeType:    rec.ChangeType,
		Source:        rec.Source,
		UserAgent:     rec.UserAgent,
		IPAddress:     rec.IPAddress,
		SessionID:     rec.SessionID,
		UserID:        rec.UserID,
		UserEmail:     rec.UserEmail,
		UserRole:      rec.UserRole,
		Timestamp:     rec.Timestamp,
		Owner:         rec.Owner,
		TTL:           rec.TTL,
		RequestID:     rec.RequestID,
		CorrelationID: rec.CorrelationID,
		Severity:      Severity(rec.Severity),
		Metadata: Metadata{
			DurationMs:   rec.DurationMs,
			AffectedRows: rec.AffectedRows,
			ErrorCode:    rec.ErrorCode,
			WarningCount: rec.WarningCount,
		},
	}
	if rec.PreviousData != "" {
		e.PreviousData = json.RawMessage(rec.PreviousData)
	}
	if rec.NewData != "" {
		e.NewData = json.RawMessage(rec.NewData)
	}
	if rec.ChangedFields != "" {
		if err := json.Unmarshal([]byte(rec.ChangedFields), &e.ChangedFields); err != nil {
			return Entry{}, fmt.Errorf("decode changedFields for entry %s: %w", rec.ID, err)
		}
	}
	if rec.ComplianceFlags != "" {
		if err := json.Unmarshal([]byte(rec.ComplianceFlags), &e.ComplianceFlags); err != nil {
			return Entry{}, fmt.Errorf("decode complianceFlags for entry %s: %w", rec.ID, err)
		}
	}
	return e, nil
}
