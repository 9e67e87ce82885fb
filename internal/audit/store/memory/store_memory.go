// Package memory provides an in-memory record store for development and
// tests. It evaluates the generic predicate form directly and paginates
// with opaque offset cursors.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"chronicle/internal/audit"
	"chronicle/internal/audit/expr"
	"chronicle/pkg/sentinel"
)

type Store struct {
	mu      sync.RWMutex
	records []audit.Record

	// createErr, when set, makes every Create fail. Tests use this to
	// exercise the retry and quarantine paths.
	createErr error
}

func NewStore() *Store {
	return &Store{}
}

// SetCreateErr injects a failure for subsequent Create calls; pass nil to
// restore normal behavior.
func (s *Store) SetCreateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *Store) Create(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns a snapshot of everything persisted so far.
func (s *Store) Records() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record{}, s.records...)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *Store) List(_ context.Context, q audit.ListQuery) (audit.ListPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Record
	for _, rec := range s.records {
		ok, err := matches(rec, q.Predicates)
		if err != nil {
			return audit.ListPage{}, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if q.Sort == audit.SortAsc {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	offset, err := decodeCursor(q.Cursor)
	if err != nil {
		return audit.ListPage{}, err
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]

	page := audit.ListPage{}
	if q.Limit > 0 && len(matched) > q.Limit {
		page.Records = matched[:q.Limit]
		page.NextCursor = encodeCursor(offset + q.Limit)
	} else {
		page.Records = matched
	}
	return page, nil
}

func matches(rec audit.Record, preds []expr.Predicate) (bool, error) {
	for _, p := range preds {
		switch p.Op {
		case expr.OpEq:
			val, err := fieldValue(rec, p.Field)
			if err != nil {
				return false, err
			}
			if val != p.Value {
				return false, nil
			}
		case expr.OpBetween:
			if p.Field != "timestamp" {
				return false, fmt.Errorf("between unsupported on field %q", p.Field)
			}
			lo, ok1 := p.Lo.(time.Time)
			hi, ok2 := p.Hi.(time.Time)
			if !ok1 || !ok2 {
				return false, fmt.Errorf("between bounds must be time.Time")
			}
			if rec.Timestamp.Before(lo) || rec.Timestamp.After(hi) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", p.Op)
		}
	}
	return true, nil
}

func fieldValue(rec audit.Record, field string) (any, error) {
	switch field {
	case "tableName":
		return rec.TableName, nil
	case "recordId":
		return rec.RecordID, nil
	case "action":
		return rec.Action, nil
	case "userId":
		return rec.UserID, nil
	case "userEmail":
		return rec.UserEmail, nil
	case "source":
		return rec.Source, nil
	case "ipAddress":
		return rec.IPAddress, nil
	case "severity":
		return rec.Severity, nil
	default:
		return nil, fmt.Errorf("unknown filter field %q", field)
	}
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
