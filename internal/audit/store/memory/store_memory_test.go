package memory

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/audit/expr"
	"chronicle/pkg/sentinel"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Create(context.Background(), audit.Record{
			ID:        "e" + strconv.Itoa(i),
			TableName: "Projects",
			RecordID:  "p-" + strconv.Itoa(i),
			Action:    "created",
			UserID:    "alice",
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func TestList_EqPredicate(t *testing.T) {
	s := NewStore()
	seed(t, s, 3)
	require.NoError(t, s.Create(context.Background(), audit.Record{
		ID:        "other",
		TableName: "Quotes",
		Action:    "updated",
		UserID:    "bob",
		Timestamp: baseTime,
	}))

	page, err := s.List(context.Background(), audit.ListQuery{
		Predicates: []expr.Predicate{expr.Eq("tableName", "Projects")},
		Sort:       audit.SortAsc,
	})
	require.NoError(t, err)
	assert.Len(t, page.Records, 3)
	assert.Empty(t, page.NextCursor)
}

func TestList_BetweenOnTimestamp(t *testing.T) {
	s := NewStore()
	seed(t, s, 10)

	page, err := s.List(context.Background(), audit.ListQuery{
		Predicates: []expr.Predicate{
			expr.Between("timestamp", baseTime.Add(2*time.Minute), baseTime.Add(5*time.Minute)),
		},
		Sort: audit.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, page.Records, 4, "both range ends are inclusive")
	assert.Equal(t, "e2", page.Records[0].ID)
	assert.Equal(t, "e5", page.Records[3].ID)
}

func TestList_BetweenRejectsNonTimestampField(t *testing.T) {
	s := NewStore()
	seed(t, s, 1)

	_, err := s.List(context.Background(), audit.ListQuery{
		Predicates: []expr.Predicate{expr.Between("userId", "a", "z")},
	})
	require.Error(t, err)
}

func TestList_UnknownFieldErrors(t *testing.T) {
	s := NewStore()
	seed(t, s, 1)

	_, err := s.List(context.Background(), audit.ListQuery{
		Predicates: []expr.Predicate{expr.Eq("nope", "x")},
	})
	require.Error(t, err)
}

func TestList_SortDirection(t *testing.T) {
	s := NewStore()
	seed(t, s, 3)

	desc, err := s.List(context.Background(), audit.ListQuery{Sort: audit.SortDesc})
	require.NoError(t, err)
	assert.Equal(t, "e2", desc.Records[0].ID)

	asc, err := s.List(context.Background(), audit.ListQuery{Sort: audit.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, "e0", asc.Records[0].ID)
}

func TestList_Pagination(t *testing.T) {
	s := NewStore()
	seed(t, s, 7)

	var ids []string
	cursor := ""
	for {
		page, err := s.List(context.Background(), audit.ListQuery{
			Limit:  3,
			Cursor: cursor,
			Sort:   audit.SortAsc,
		})
		require.NoError(t, err)
		for _, rec := range page.Records {
			ids = append(ids, rec.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4", "e5", "e6"}, ids)
}

func TestList_CursorPastEnd(t *testing.T) {
	s := NewStore()
	seed(t, s, 2)

	page, err := s.List(context.Background(), audit.ListQuery{
		Limit:  3,
		Cursor: encodeCursor(10),
		Sort:   audit.SortAsc,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.NextCursor)
}

func TestDecodeCursor(t *testing.T) {
	offset, err := decodeCursor(encodeCursor(42))
	require.NoError(t, err)
	assert.Equal(t, 42, offset)

	_, err = decodeCursor("!!!")
	assert.ErrorIs(t, err, sentinel.ErrInvalidCursor)

	_, err = decodeCursor(encodeCursor(-1))
	assert.ErrorIs(t, err, sentinel.ErrInvalidCursor)
}

func TestCreate_InjectedFailure(t *testing.T) {
	s := NewStore()
	s.SetCreateErr(assert.AnError)

	err := s.Create(context.Background(), audit.Record{ID: "x"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, s.Records())

	s.SetCreateErr(nil)
	require.NoError(t, s.Create(context.Background(), audit.Record{ID: "x"}))
	assert.Len(t, s.Records(), 1)
}
