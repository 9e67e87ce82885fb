package audit_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/audit/store/memory"
	"chronicle/pkg/sentinel"
)

func seedRecord(t *testing.T, store *memory.Store, id, table, userID string, action audit.Action, ts time.Time) {
	t.Helper()
	err := store.Create(context.Background(), audit.Record{
		ID:        id,
		TableName: table,
		RecordID:  "rec-" + id,
		Action:    string(action),
		UserID:    userID,
		Owner:     userID,
		Timestamp: ts,
		TTL:       ts.Add(24 * time.Hour).Unix(),
		Severity:  string(audit.SeverityLow),
	})
	require.NoError(t, err)
}

func TestQuery_FiltersConjunctively(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	seedRecord(t, store, "e1", "Projects", "alice", audit.ActionCreated, fixedNow)
	seedRecord(t, store, "e2", "Projects", "bob", audit.ActionUpdated, fixedNow.Add(time.Minute))
	seedRecord(t, store, "e3", "Quotes", "alice", audit.ActionUpdated, fixedNow.Add(2*time.Minute))

	page, err := svc.Query(ctx, audit.Filters{TableName: "Projects", UserID: "alice"}, audit.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "e1", page.Entries[0].ID)
	assert.False(t, page.HasNextPage)
}

func TestQuery_DateRange(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)

	seedRecord(t, store, "old", "Projects", "alice", audit.ActionCreated, fixedNow.Add(-48*time.Hour))
	seedRecord(t, store, "recent", "Projects", "alice", audit.ActionCreated, fixedNow)

	page, err := svc.Query(context.Background(), audit.Filters{
		DateRange: &audit.DateRange{Start: fixedNow.Add(-time.Hour), End: fixedNow.Add(time.Hour)},
	}, audit.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "recent", page.Entries[0].ID)
}

func TestQuery_DefaultSortIsNewestFirst(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)

	seedRecord(t, store, "first", "Projects", "alice", audit.ActionCreated, fixedNow)
	seedRecord(t, store, "second", "Projects", "alice", audit.ActionCreated, fixedNow.Add(time.Minute))

	page, err := svc.Query(context.Background(), audit.Filters{}, audit.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "second", page.Entries[0].ID)

	asc, err := svc.Query(context.Background(), audit.Filters{}, audit.QueryOptions{Sort: audit.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, "first", asc.Entries[0].ID)
}

func TestQuery_CursorPagination(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedRecord(t, store, "e"+strconv.Itoa(i), "Projects", "alice", audit.ActionCreated,
			fixedNow.Add(time.Duration(i)*time.Minute))
	}

	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := svc.Query(ctx, audit.Filters{}, audit.QueryOptions{
			Limit:  2,
			Cursor: cursor,
			Sort:   audit.SortAsc,
		})
		require.NoError(t, err)
		for _, e := range page.Entries {
			seen = append(seen, e.ID)
		}
		pages++
		if !page.HasNextPage {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4"}, seen)
}

func TestQuery_InvalidCursor(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	seedRecord(t, store, "e1", "Projects", "alice", audit.ActionCreated, fixedNow)

	_, err := svc.Query(context.Background(), audit.Filters{}, audit.QueryOptions{Cursor: "%%not-base64%%"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrInvalidCursor)
}

func TestQuery_SkipsUndecodableRecords(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)

	seedRecord(t, store, "good", "Projects", "alice", audit.ActionCreated, fixedNow)
	require.NoError(t, store.Create(context.Background(), audit.Record{
		ID:            "bad",
		TableName:     "Projects",
		RecordID:      "rec-bad",
		Action:        string(audit.ActionCreated),
		Timestamp:     fixedNow.Add(time.Minute),
		ChangedFields: "{corrupt",
	}))

	page, err := svc.Query(context.Background(), audit.Filters{}, audit.QueryOptions{})
	require.NoError(t, err, "a corrupt record must not fail the page")
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "good", page.Entries[0].ID)
}
