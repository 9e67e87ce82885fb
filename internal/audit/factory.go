package audit

import (
	"time"

	"github.com/google/uuid"
)

// Retention windows, in days. Deletions and security-critical changes keep
// the long window regardless of caller overrides.
const (
	defaultRetentionDays = 2555
	longRetentionDays    = 3650
)

// personalDataTables name business tables holding personal data. Mutations
// against them (other than creations) are GDPR-relevant.
var personalDataTables = map[string]bool{
	"Contacts":   true,
	"Users":      true,
	"Properties": true,
}

// longRetentionChangeTypes force the long retention window independent of
// the action.
var longRetentionChangeTypes = map[string]bool{
	ChangeTypeSecurityCritical: true,
	ChangeTypePermissionChange: true,
}

var financialChangeTypes = map[string]bool{
	ChangeTypeFinancialData: true,
	ChangeTypePaymentUpdate: true,
}

// automatedSources name non-interactive callers whose mutations are tagged
// as automated changes.
var automatedSources = map[string]bool{
	"system":    true,
	"scheduler": true,
	"api":       true,
	"migration": true,
}

// buildEntry constructs a canonical immutable audit entry from a raw
// operation and its ambient context. Deterministic given identical inputs
// except for ID and timestamps.
func buildEntry(op Operation, rc RequestContext, now time.Time) Entry {
	id := uuid.NewString()

	correlationID := rc.CorrelationID
	if correlationID == "" {
		correlationID = id
	}

	owner := rc.UserID
	if owner == "" {
		owner = "system"
	}

	return Entry{
		ID:              id,
		TableName:       op.TableName,
		RecordID:        op.RecordID,
		Action:          op.Action,
		ChangeType:      op.ChangeType,
		PreviousData:    op.PreviousData,
		NewData:         op.NewData,
		ChangedFields:   op.ChangedFields,
		Source:          rc.Source,
		UserAgent:       rc.UserAgent,
		IPAddress:       rc.IPAddress,
		SessionID:       rc.SessionID,
		UserID:          rc.UserID,
		UserEmail:       rc.UserEmail,
		UserRole:        rc.UserRole,
		Timestamp:       now,
		Owner:           owner,
		TTL:             deriveTTL(op, rc.RetentionDays, now),
		RequestID:       rc.RequestID,
		CorrelationID:   correlationID,
		Severity:        deriveSeverity(op),
		ComplianceFlags: deriveComplianceFlags(op, rc.Source),
		Metadata: Metadata{
			DurationMs:   rc.DurationMs,
			AffectedRows: op.AffectedRows,
			ErrorCode:    rc.ErrorCode,
			WarningCount: rc.WarningCount,
		},
	}
}

// deriveTTL computes the epoch-seconds expiry instant. The result is always
// strictly greater than the creation instant.
func deriveTTL(op Operation, retentionDays int, now time.Time) int64 {
	days := defaultRetentionDays
	if op.Action == ActionDeleted || longRetentionChangeTypes[op.ChangeType] {
		days = longRetentionDays
	} else if retentionDays > 0 {
		days = retentionDays
	}
	return now.Add(time.Duration(days) * 24 * time.Hour).Unix()
}

// deriveSeverity is a pure function of the operation's action and change
// scope.
func deriveSeverity(op Operation) Severity {
	if op.Action == ActionDeleted || op.ChangeType == ChangeTypeSecurityCritical {
		return SeverityHigh
	}
	if op.Action == ActionUpdated && len(op.ChangedFields) > 5 {
		return SeverityMedium
	}
	return SeverityLow
}

// deriveComplianceFlags tags the entry deterministically. Flag order is
// fixed so identical inputs always produce identical slices.
func deriveComplianceFlags(op Operation, source string) []ComplianceFlag {
	var flags []ComplianceFlag
	if personalDataTables[op.TableName] && op.Action != ActionCreated {
		flags = append(flags, FlagGDPRRelevant)
	}
	if financialChangeTypes[op.ChangeType] {
		flags = append(flags, FlagFinancialData)
	}
	if automatedSources[source] {
		flags = append(flags, FlagAutomatedChange)
	}
	return flags
}
