package audit

import (
	"context"
	"time"

	"chronicle/internal/audit/expr"
	pkgerrors "chronicle/pkg/errors"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 1000
)

// Field names shared by the query engine and the stores. Stores translate
// these into their native column or attribute names.
const (
	FieldTableName = "tableName"
	FieldRecordID  = "recordId"
	FieldAction    = "action"
	FieldUserID    = "userId"
	FieldUserEmail = "userEmail"
	FieldSource    = "source"
	FieldIPAddress = "ipAddress"
	FieldSeverity  = "severity"
	FieldTimestamp = "timestamp"
)

// buildPredicates compiles a filter specification into the store-agnostic
// predicate form. Set filters combine conjunctively.
func buildPredicates(f Filters) []expr.Predicate {
	var preds []expr.Predicate
	if f.TableName != "" {
		preds = append(preds, expr.Eq(FieldTableName, f.TableName))
	}
	if f.RecordID != "" {
		preds = append(preds, expr.Eq(FieldRecordID, f.RecordID))
	}
	if f.Action != "" {
		preds = append(preds, expr.Eq(FieldAction, string(f.Action)))
	}
	if f.UserID != "" {
		preds = append(preds, expr.Eq(FieldUserID, f.UserID))
	}
	if f.UserEmail != "" {
		preds = append(preds, expr.Eq(FieldUserEmail, f.UserEmail))
	}
	if f.Source != "" {
		preds = append(preds, expr.Eq(FieldSource, f.Source))
	}
	if f.IPAddress != "" {
		preds = append(preds, expr.Eq(FieldIPAddress, f.IPAddress))
	}
	if f.Severity != "" {
		preds = append(preds, expr.Eq(FieldSeverity, string(f.Severity)))
	}
	if f.DateRange != nil {
		preds = append(preds, expr.Between(FieldTimestamp, f.DateRange.Start, f.DateRange.End))
	}
	return preds
}

// Query retrieves one page of the audit trail matching the filters. Records
// whose stored blobs fail to decode are skipped and logged rather than
// failing the page.
func (s *Service) Query(ctx context.Context, f Filters, opts QueryOptions) (QueryPage, error) {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	sort := opts.Sort
	if sort == "" {
		sort = SortDesc
	}

	page, err := s.store.List(ctx, ListQuery{
		Predicates: buildPredicates(f),
		Limit:      limit,
		Cursor:     opts.Cursor,
		Sort:       sort,
	})
	if err != nil {
		return QueryPage{}, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "audit query failed", err)
	}

	entries := make([]Entry, 0, len(page.Records))
	for _, rec := range page.Records {
		entry, err := entryFromRecord(rec)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable audit record",
				"entry_id", rec.ID,
				"error", err,
			)
			continue
		}
		entries = append(entries, entry)
	}

	elapsed := time.Since(start)
	s.metrics.ObserveQueryDuration(elapsed.Seconds())

	return QueryPage{
		Entries:     entries,
		NextCursor:  page.NextCursor,
		HasNextPage: page.NextCursor != "",
		QueryTimeMs: elapsed.Milliseconds(),
	}, nil
}
