package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCritical(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want bool
	}{
		{"delete anywhere", Operation{TableName: "Projects", Action: ActionDeleted}, true},
		{"sensitive table update", Operation{TableName: "Users", Action: ActionUpdated}, true},
		{"sensitive table create", Operation{TableName: "Auth", Action: ActionCreated}, true},
		{"security-critical change", Operation{TableName: "Projects", Action: ActionUpdated, ChangeType: ChangeTypeSecurityCritical}, true},
		{"routine create", Operation{TableName: "Projects", Action: ActionCreated}, false},
		{"routine update", Operation{TableName: "Contacts", Action: ActionUpdated}, false},
		{"financial change stays routine", Operation{TableName: "Quotes", Action: ActionUpdated, ChangeType: ChangeTypeFinancialData}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCritical(tt.op))
		})
	}
}
