package audit_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/audit/store/memory"
)

// cleanEntry returns an entry that passes every built-in standard check.
func cleanEntry(table string, action audit.Action) audit.Entry {
	e := audit.Entry{
		ID:              "entry-1",
		TableName:       table,
		RecordID:        "rec-1",
		Action:          action,
		SessionID:       "sess-1",
		UserID:          "user-1",
		Owner:           "user-1",
		Timestamp:       fixedNow,
		TTL:             fixedNow.Add(3650 * 24 * time.Hour).Unix(),
		ComplianceFlags: []audit.ComplianceFlag{audit.FlagGDPRRelevant},
	}
	return e
}

func TestValidateCompliance_CleanTrailScoresFull(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	report := svc.ValidateCompliance(
		[]audit.Entry{cleanEntry("Contacts", audit.ActionUpdated)},
		[]string{"GDPR", "SOX", "HIPAA"},
	)

	assert.Equal(t, 100, report.ComplianceScore)
	assert.Empty(t, report.Findings)
	assert.Empty(t, report.Recommendations)
	assert.Equal(t, 1, report.TotalLogsReviewed)
	assert.Equal(t, fixedNow, report.ValidationDate)
}

func TestValidateCompliance_GDPRFindings(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	unflagged := cleanEntry("Contacts", audit.ActionUpdated)
	unflagged.ComplianceFlags = nil

	anonymous := cleanEntry("Users", audit.ActionUpdated)
	anonymous.UserID = ""
	anonymous.Owner = "system"
	anonymous.Source = ""

	shortRetention := cleanEntry("Contacts", audit.ActionDeleted)
	shortRetention.TTL = fixedNow.Add(30 * 24 * time.Hour).Unix()

	report := svc.ValidateCompliance(
		[]audit.Entry{unflagged, anonymous, shortRetention},
		[]string{"GDPR"},
	)

	rules := make([]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		rules = append(rules, f.Rule)
	}
	assert.Contains(t, rules, "gdpr_flag_missing")
	assert.Contains(t, rules, "gdpr_actor_missing")
	assert.Contains(t, rules, "gdpr_retention_short")
	assert.Equal(t, 100-10*len(report.Findings), report.ComplianceScore)
	assert.NotEmpty(t, report.Recommendations)
}

func TestValidateCompliance_SOXFindings(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	noSnapshot := cleanEntry("Quotes", audit.ActionUpdated)
	noSnapshot.ChangeType = audit.ChangeTypeFinancialData
	noSnapshot.ComplianceFlags = []audit.ComplianceFlag{audit.FlagFinancialData}

	withSnapshot := noSnapshot
	withSnapshot.ID = "entry-2"
	withSnapshot.PreviousData = json.RawMessage(`{"total": 100}`)

	report := svc.ValidateCompliance([]audit.Entry{noSnapshot, withSnapshot}, []string{"SOX"})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "sox_snapshot_missing", report.Findings[0].Rule)
	assert.Equal(t, "entry-1", report.Findings[0].EntryID)
}

func TestValidateCompliance_HIPAAIgnoresAutomatedChanges(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	automated := cleanEntry("Contacts", audit.ActionUpdated)
	automated.SessionID = ""
	automated.ComplianceFlags = []audit.ComplianceFlag{audit.FlagGDPRRelevant, audit.FlagAutomatedChange}

	interactive := cleanEntry("Contacts", audit.ActionUpdated)
	interactive.ID = "entry-2"
	interactive.SessionID = ""

	report := svc.ValidateCompliance([]audit.Entry{automated, interactive}, []string{"HIPAA"})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "hipaa_session_missing", report.Findings[0].Rule)
	assert.Equal(t, "entry-2", report.Findings[0].EntryID)
}

func TestValidateCompliance_UnknownStandard(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	report := svc.ValidateCompliance(nil, []string{"PCI-DSS"})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "supported_standard", report.Findings[0].Rule)
	assert.Equal(t, 90, report.ComplianceScore)
}

func TestValidateCompliance_ScoreFloorsAtZero(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	bad := cleanEntry("Contacts", audit.ActionUpdated)
	bad.ComplianceFlags = nil
	bad.SessionID = ""

	entries := make([]audit.Entry, 12)
	for i := range entries {
		entries[i] = bad
	}

	report := svc.ValidateCompliance(entries, []string{"GDPR", "HIPAA"})
	assert.Equal(t, 0, report.ComplianceScore)
}

// customCheck replaces a built-in standard via WithStandardCheck.
type customCheck struct{}

func (customCheck) Standard() string { return "GDPR" }

func (customCheck) Check([]audit.Entry) []audit.Finding {
	return []audit.Finding{{Standard: "GDPR", Rule: "custom_rule", Severity: audit.SeverityLow}}
}

func TestValidateCompliance_CustomCheckReplacesBuiltin(t *testing.T) {
	svc := newTestService(t, memory.NewStore(), audit.WithStandardCheck(customCheck{}))

	report := svc.ValidateCompliance([]audit.Entry{cleanEntry("Contacts", audit.ActionUpdated)}, []string{"GDPR"})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "custom_rule", report.Findings[0].Rule)
}
