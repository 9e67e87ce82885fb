package audit

import "time"

// Built-in standard checks. Each one is deliberately small: the aggregation
// and scoring machinery in ValidateCompliance stays untouched when rules
// are added or replaced via WithStandardCheck.

func defaultStandardChecks() []StandardCheck {
	return []StandardCheck{
		gdprCheck{},
		soxCheck{},
		hipaaCheck{},
	}
}

// gdprCheck verifies that personal-data mutations carry the gdpr_relevant
// flag, an identifiable actor, and the long retention window on deletion.
type gdprCheck struct{}

func (gdprCheck) Standard() string { return "GDPR" }

func (gdprCheck) Check(entries []Entry) []Finding {
	var findings []Finding
	for _, e := range entries {
		if !personalDataTables[e.TableName] {
			continue
		}
		if e.Action != ActionCreated && !e.HasFlag(FlagGDPRRelevant) {
			findings = append(findings, Finding{
				Standard:    "GDPR",
				Rule:        "gdpr_flag_missing",
				Description: "personal-data mutation lacks gdpr_relevant flag on table " + e.TableName,
				Severity:    SeverityMedium,
				EntryID:     e.ID,
			})
		}
		if e.UserID == "" && e.Owner == "system" && e.Source == "" {
			findings = append(findings, Finding{
				Standard:    "GDPR",
				Rule:        "gdpr_actor_missing",
				Description: "personal-data mutation has no identifiable actor",
				Severity:    SeverityHigh,
				EntryID:     e.ID,
			})
		}
		if e.Action == ActionDeleted {
			longWindow := e.Timestamp.Add(longRetentionDays * 24 * time.Hour).Unix()
			if e.TTL < longWindow {
				findings = append(findings, Finding{
					Standard:    "GDPR",
					Rule:        "gdpr_retention_short",
					Description: "personal-data deletion retained for less than the long window",
					Severity:    SeverityHigh,
					EntryID:     e.ID,
				})
			}
		}
	}
	return findings
}

// soxCheck verifies financial mutations are flagged and carry a before-state
// snapshot on update, so the change trail supports financial audits.
type soxCheck struct{}

func (soxCheck) Standard() string { return "SOX" }

func (soxCheck) Check(entries []Entry) []Finding {
	var findings []Finding
	for _, e := range entries {
		if !financialChangeTypes[e.ChangeType] {
			continue
		}
		if !e.HasFlag(FlagFinancialData) {
			findings = append(findings, Finding{
				Standard:    "SOX",
				Rule:        "sox_flag_missing",
				Description: "financial change lacks financial_data_change flag",
				Severity:    SeverityMedium,
				EntryID:     e.ID,
			})
		}
		if e.Action == ActionUpdated && len(e.PreviousData) == 0 {
			findings = append(findings, Finding{
				Standard:    "SOX",
				Rule:        "sox_snapshot_missing",
				Description: "financial update has no before-state snapshot",
				Severity:    SeverityHigh,
				EntryID:     e.ID,
			})
		}
	}
	return findings
}

// hipaaCheck verifies mutations against protected-data tables carry session
// traceability and that deletions name an owner.
type hipaaCheck struct{}

func (hipaaCheck) Standard() string { return "HIPAA" }

// hipaaProtectedTables hold health-adjacent personal records in the source
// application.
var hipaaProtectedTables = map[string]bool{
	"Contacts":   true,
	"Properties": true,
}

func (hipaaCheck) Check(entries []Entry) []Finding {
	var findings []Finding
	for _, e := range entries {
		if !hipaaProtectedTables[e.TableName] {
			continue
		}
		if e.SessionID == "" && !e.HasFlag(FlagAutomatedChange) {
			findings = append(findings, Finding{
				Standard:    "HIPAA",
				Rule:        "hipaa_session_missing",
				Description: "interactive protected-data access has no session identifier",
				Severity:    SeverityMedium,
				EntryID:     e.ID,
			})
		}
		if e.Action == ActionDeleted && e.Owner == "" {
			findings = append(findings, Finding{
				Standard:    "HIPAA",
				Rule:        "hipaa_owner_missing",
				Description: "protected-data deletion has no owning identity",
				Severity:    SeverityHigh,
				EntryID:     e.ID,
			})
		}
	}
	return findings
}
