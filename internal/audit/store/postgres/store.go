// Package postgres implements the record store contract on PostgreSQL for
// deployments without the managed cloud store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"chronicle/internal/audit"
	"chronicle/internal/audit/expr"
	"chronicle/pkg/sentinel"
)

// Schema creates the audit trail table. The trail is append-only: nothing
// in the engine issues UPDATE or DELETE against it.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id               UUID PRIMARY KEY,
	table_name       TEXT NOT NULL,
	record_id        TEXT NOT NULL,
	action           TEXT NOT NULL,
	change_type      TEXT NOT NULL DEFAULT '',
	previous_data    TEXT NOT NULL DEFAULT '',
	new_data         TEXT NOT NULL DEFAULT '',
	changed_fields   TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT '',
	user_agent       TEXT NOT NULL DEFAULT '',
	ip_address       TEXT NOT NULL DEFAULT '',
	session_id       TEXT NOT NULL DEFAULT '',
	user_id          TEXT NOT NULL DEFAULT '',
	user_email       TEXT NOT NULL DEFAULT '',
	user_role        TEXT NOT NULL DEFAULT '',
	timestamp        TIMESTAMPTZ NOT NULL,
	owner            TEXT NOT NULL DEFAULT '',
	ttl              BIGINT NOT NULL,
	request_id       TEXT NOT NULL DEFAULT '',
	correlation_id   TEXT NOT NULL DEFAULT '',
	severity         TEXT NOT NULL DEFAULT '',
	compliance_flags TEXT NOT NULL DEFAULT '',
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	affected_rows    INT NOT NULL DEFAULT 0,
	error_code       TEXT NOT NULL DEFAULT '',
	warning_count    INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS audit_logs_timestamp_idx ON audit_logs (timestamp);
CREATE INDEX IF NOT EXISTS audit_logs_table_name_idx ON audit_logs (table_name, timestamp);
CREATE INDEX IF NOT EXISTS audit_logs_user_id_idx ON audit_logs (user_id, timestamp);
`

// columnFor translates query-engine field names into columns. Unknown
// fields are rejected rather than interpolated.
var columnFor = map[string]string{
	"tableName": "table_name",
	"recordId":  "record_id",
	"action":    "action",
	"userId":    "user_id",
	"userEmail": "user_email",
	"source":    "source",
	"ipAddress": "ip_address",
	"severity":  "severity",
	"timestamp": "timestamp",
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// EnsureSchema creates the audit trail table and indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(ctx context.Context, rec audit.Record) error {
	query := `
		INSERT INTO audit_logs (
			id, table_name, record_id, action, change_type,
			previous_data, new_data, changed_fields,
			source, user_agent, ip_address, session_id,
			user_id, user_email, user_role,
			timestamp, owner, ttl, request_id, correlation_id,
			severity, compliance_flags,
			duration_ms, affected_rows, error_code, warning_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.TableName, rec.RecordID, rec.Action, rec.ChangeType,
		rec.PreviousData, rec.NewData, rec.ChangedFields,
		rec.Source, rec.UserAgent, rec.IPAddress, rec.SessionID,
		rec.UserID, rec.UserEmail, rec.UserRole,
		rec.Timestamp, rec.Owner, rec.TTL, rec.RequestID, rec.CorrelationID,
		rec.Severity, rec.ComplianceFlags,
		rec.DurationMs, rec.AffectedRows, rec.ErrorCode, rec.WarningCount,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, q audit.ListQuery) (audit.ListPage, error) {
	where, args, err := buildWhere(q.Predicates)
	if err != nil {
		return audit.ListPage{}, err
	}

	offset, err := decodeCursor(q.Cursor)
	if err != nil {
		return audit.ListPage{}, err
	}

	order := "DESC"
	if q.Sort == audit.SortAsc {
		order = "ASC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	// Fetch one extra row to decide whether a next page exists.
	query := fmt.Sprintf(`
		SELECT id, table_name, record_id, action, change_type,
			previous_data, new_data, changed_fields,
			source, user_agent, ip_address, session_id,
			user_id, user_email, user_role,
			timestamp, owner, ttl, request_id, correlation_id,
			severity, compliance_flags,
			duration_ms, affected_rows, error_code, warning_count
		FROM audit_logs
		%s
		ORDER BY timestamp %s, id %s
		LIMIT %d OFFSET %d
	`, where, order, order, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return audit.ListPage{}, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return audit.ListPage{}, err
	}

	page := audit.ListPage{Records: records}
	if len(records) > limit {
		page.Records = records[:limit]
		page.NextCursor = encodeCursor(offset + limit)
	}
	return page, nil
}

func buildWhere(preds []expr.Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}
	var (
		clauses []string
		args    []any
	)
	for _, p := range preds {
		col, ok := columnFor[p.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", p.Field)
		}
		switch p.Op {
		case expr.OpEq:
			args = append(args, p.Value)
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
		case expr.OpBetween:
			args = append(args, p.Lo, p.Hi)
			clauses = append(clauses, fmt.Sprintf("%s BETWEEN $%d AND $%d", col, len(args)-1, len(args)))
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
		}
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var records []audit.Record
	for rows.Next() {
		var (
			rec audit.Record
			ts  time.Time
		)
		err := rows.Scan(
			&rec.ID, &rec.TableName, &rec.RecordID, &rec.Action, &rec.ChangeType,
			&rec.PreviousData, &rec.NewData, &rec.ChangedFields,
			&rec.Source, &rec.UserAgent, &rec.IPAddress, &rec.SessionID,
			&rec.UserID, &rec.UserEmail, &rec.UserRole,
			&ts, &rec.Owner, &rec.TTL, &rec.RequestID, &rec.CorrelationID,
			&rec.Severity, &rec.ComplianceFlags,
			&rec.DurationMs, &rec.AffectedRows, &rec.ErrorCode, &rec.WarningCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Timestamp = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", sentinel.ErrInvalidCursor, err)
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, sentinel.ErrInvalidCursor
	}
	return offset, nil
}
