package audit

// sensitiveTables name business tables whose mutations always persist on
// the synchronous critical path.
var sensitiveTables = map[string]bool{
	"Users": true,
	"Auth":  true,
	"Legal": true,
}

// isCritical decides whether an operation bypasses batching. Critical
// operations are deletions, mutations to sensitive tables, and
// security-critical changes.
func isCritical(op Operation) bool {
	if op.Action == ActionDeleted {
		return true
	}
	if sensitiveTables[op.TableName] {
		return true
	}
	return op.ChangeType == ChangeTypeSecurityCritical
}
