package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func TestBuildEntry_Defaults(t *testing.T) {
	op := Operation{
		TableName: "Projects",
		RecordID:  "proj-1",
		Action:    ActionCreated,
	}
	entry := buildEntry(op, RequestContext{}, testNow)

	require.NotEmpty(t, entry.ID)
	assert.Equal(t, entry.ID, entry.CorrelationID, "correlationId defaults to id")
	assert.Equal(t, "system", entry.Owner, "owner defaults to system without a user")
	assert.Equal(t, testNow, entry.Timestamp)
	assert.Greater(t, entry.TTL, entry.Timestamp.Unix())
}

func TestBuildEntry_CallerContext(t *testing.T) {
	op := Operation{
		TableName: "Quotes",
		RecordID:  "q-9",
		Action:    ActionUpdated,
	}
	rc := RequestContext{
		UserID:        "user-7",
		CorrelationID: "corr-42",
		RequestID:     "req-1",
		ErrorCode:     "E_TIMEOUT",
		DurationMs:    120,
	}
	entry := buildEntry(op, rc, testNow)

	assert.Equal(t, "corr-42", entry.CorrelationID)
	assert.Equal(t, "user-7", entry.Owner)
	assert.Equal(t, "E_TIMEOUT", entry.Metadata.ErrorCode)
	assert.Equal(t, int64(120), entry.Metadata.DurationMs)
}

func TestDeriveTTL_Windows(t *testing.T) {
	deleted := deriveTTL(Operation{Action: ActionDeleted}, 0, testNow)
	updated := deriveTTL(Operation{Action: ActionUpdated}, 0, testNow)
	security := deriveTTL(Operation{Action: ActionUpdated, ChangeType: ChangeTypeSecurityCritical}, 0, testNow)
	custom := deriveTTL(Operation{Action: ActionUpdated}, 30, testNow)

	assert.Equal(t, testNow.Add(longRetentionDays*24*time.Hour).Unix(), deleted)
	assert.Equal(t, testNow.Add(defaultRetentionDays*24*time.Hour).Unix(), updated)
	assert.Equal(t, deleted, security, "security-critical changes keep the long window")
	assert.Equal(t, testNow.Add(30*24*time.Hour).Unix(), custom)

	assert.Greater(t, deleted, updated, "deletions outlive otherwise-identical updates")
}

func TestDeriveTTL_RetentionOverrideIgnoredForDeletes(t *testing.T) {
	ttl := deriveTTL(Operation{Action: ActionDeleted}, 7, testNow)
	assert.Equal(t, testNow.Add(longRetentionDays*24*time.Hour).Unix(), ttl)
}

func TestDeriveSeverity(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want Severity
	}{
		{"delete", Operation{Action: ActionDeleted}, SeverityHigh},
		{"security critical", Operation{Action: ActionUpdated, ChangeType: ChangeTypeSecurityCritical}, SeverityHigh},
		{"wide update", Operation{Action: ActionUpdated, ChangedFields: []string{"a", "b", "c", "d", "e", "f"}}, SeverityMedium},
		{"narrow update", Operation{Action: ActionUpdated, ChangedFields: []string{"email"}}, SeverityLow},
		{"create", Operation{Action: ActionCreated}, SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveSeverity(tt.op))
		})
	}
}

func TestDeriveComplianceFlags(t *testing.T) {
	t.Run("gdpr on personal-data mutation", func(t *testing.T) {
		flags := deriveComplianceFlags(Operation{TableName: "Contacts", Action: ActionUpdated}, "admin_panel")
		assert.Contains(t, flags, FlagGDPRRelevant)
	})

	t.Run("no gdpr on create", func(t *testing.T) {
		flags := deriveComplianceFlags(Operation{TableName: "Contacts", Action: ActionCreated}, "admin_panel")
		assert.NotContains(t, flags, FlagGDPRRelevant)
	})

	t.Run("financial change type", func(t *testing.T) {
		flags := deriveComplianceFlags(Operation{TableName: "Quotes", Action: ActionUpdated, ChangeType: ChangeTypeFinancialData}, "")
		assert.Contains(t, flags, FlagFinancialData)
	})

	t.Run("automated source", func(t *testing.T) {
		flags := deriveComplianceFlags(Operation{TableName: "Projects", Action: ActionCreated}, "scheduler")
		assert.Equal(t, []ComplianceFlag{FlagAutomatedChange}, flags)
	})
}

// Severity and flags must be pure functions of the operation: two entries
// built from identical inputs differ only in ID and timestamp.
func TestBuildEntry_DerivationIsDeterministic(t *testing.T) {
	op := Operation{
		TableName:     "Users",
		RecordID:      "u-3",
		Action:        ActionUpdated,
		ChangeType:    "manual_update",
		ChangedFields: []string{"email", "phone"},
	}
	rc := RequestContext{Source: "admin_panel", UserID: "admin-1"}

	a := buildEntry(op, rc, testNow)
	b := buildEntry(op, rc, testNow.Add(time.Hour))

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Severity, b.Severity)
	assert.Equal(t, a.ComplianceFlags, b.ComplianceFlags)
}
