package audit

import "sort"

// StandardCheck validates a set of entries against one regulatory standard.
// Implementations must not mutate the input.
type StandardCheck interface {
	Standard() string
	Check(entries []Entry) []Finding
}

// ValidateCompliance scores a set of entries against the requested
// standards. Each standard runs its registered check; unknown standards
// produce a finding instead of an error so advisory callers always get a
// report back.
func (s *Service) ValidateCompliance(entries []Entry, standards []string) ComplianceReport {
	var findings []Finding
	for _, standard := range standards {
		check, ok := s.checks[standard]
		if !ok {
			findings = append(findings, Finding{
				Standard:    standard,
				Rule:        "supported_standard",
				Description: "no validation rules registered for standard " + standard,
				Severity:    SeverityLow,
			})
			continue
		}
		findings = append(findings, check.Check(entries)...)
	}

	score := 100 - 10*len(findings)
	if score < 0 {
		score = 0
	}

	return ComplianceReport{
		Standards:         standards,
		ValidationDate:    s.now(),
		TotalLogsReviewed: len(entries),
		ComplianceScore:   score,
		Findings:          findings,
		Recommendations:   recommendationsFor(findings),
	}
}

// recommendationsFor derives a deduplicated, stable-ordered recommendation
// list from the findings.
func recommendationsFor(findings []Finding) []string {
	seen := make(map[string]bool)
	var recs []string
	for _, f := range findings {
		rec, ok := ruleRecommendations[f.Rule]
		if !ok || seen[rec] {
			continue
		}
		seen[rec] = true
		recs = append(recs, rec)
	}
	sort.Strings(recs)
	return recs
}

var ruleRecommendations = map[string]string{
	"supported_standard":      "register a StandardCheck for every standard you validate against",
	"gdpr_flag_missing":       "review compliance flag derivation for personal-data tables",
	"gdpr_actor_missing":      "require an authenticated actor for personal-data mutations",
	"gdpr_retention_short":    "extend retention for personal-data deletions to the long window",
	"sox_flag_missing":        "tag financial change types so financial mutations are traceable",
	"sox_snapshot_missing":    "capture before-state snapshots for financial updates",
	"hipaa_session_missing":   "propagate session identifiers on records holding protected data",
	"hipaa_owner_missing":     "record an owning identity for every deletion",
}
