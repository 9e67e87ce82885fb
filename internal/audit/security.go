package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Scanner is one heuristic pass over a window of entries. Scanners must not
// mutate their input and must tolerate empty input by returning no alerts.
type Scanner interface {
	Name() string
	Scan(entries []Entry) []Alert
}

// DetectAlerts runs every registered scanner over the window and
// concatenates their results. Advisory only: an empty window yields an
// empty result, never an error.
func (s *Service) DetectAlerts(entries []Entry) []Alert {
	var alerts []Alert
	for _, scanner := range s.scanners {
		alerts = append(alerts, scanner.Scan(entries)...)
	}
	return alerts
}

func defaultScanners() []Scanner {
	return []Scanner{
		failureBurstScanner{window: 15 * time.Minute, threshold: 5},
		volumeScanner{threshold: 100},
		roleEscalationScanner{},
		bulkAccessScanner{threshold: 50},
		offHoursScanner{startHour: 22, endHour: 6},
	}
}

// newestTimestamp stamps alerts with the most recent involved entry so
// detection output is deterministic for a fixed window.
func newestTimestamp(entries []Entry) time.Time {
	var newest time.Time
	for _, e := range entries {
		if e.Timestamp.After(newest) {
			newest = e.Timestamp
		}
	}
	return newest
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// failureBurstScanner flags users whose operations repeatedly errored
// within a short window.
type failureBurstScanner struct {
	window    time.Duration
	threshold int
}

func (failureBurstScanner) Name() string { return "repeated_failures" }

func (sc failureBurstScanner) Scan(entries []Entry) []Alert {
	byUser := make(map[string][]Entry)
	for _, e := range entries {
		if e.Metadata.ErrorCode == "" || e.UserID == "" {
			continue
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	var alerts []Alert
	for _, user := range sortedKeys(boolKeys(byUser)) {
		failures := byUser[user]
		sort.Slice(failures, func(i, j int) bool {
			return failures[i].Timestamp.Before(failures[j].Timestamp)
		})
		for i := 0; i+sc.threshold <= len(failures); i++ {
			span := failures[i+sc.threshold-1].Timestamp.Sub(failures[i].Timestamp)
			if span <= sc.window {
				alerts = append(alerts, Alert{
					ID:            uuid.NewString(),
					Type:          sc.Name(),
					Severity:      SeverityHigh,
					Description:   fmt.Sprintf("%d failed operations by user %s within %s", sc.threshold, user, sc.window),
					Timestamp:     newestTimestamp(failures),
					AffectedUsers: []string{user},
					RecommendedActions: []string{
						"review recent activity for the user",
						"verify credentials have not been compromised",
					},
				})
				break
			}
		}
	}
	return alerts
}

func boolKeys[V any](m map[string]V) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// volumeScanner flags users with an unusually high operation count in the
// window.
type volumeScanner struct {
	threshold int
}

func (volumeScanner) Name() string { return "unusual_activity_volume" }

func (sc volumeScanner) Scan(entries []Entry) []Alert {
	counts := make(map[string]int)
	byUser := make(map[string][]Entry)
	for _, e := range entries {
		if e.UserID == "" {
			continue
		}
		counts[e.UserID]++
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	var alerts []Alert
	for _, user := range sortedKeys(boolKeys(counts)) {
		if counts[user] < sc.threshold {
			continue
		}
		alerts = append(alerts, Alert{
			ID:            uuid.NewString(),
			Type:          sc.Name(),
			Severity:      SeverityMedium,
			Description:   fmt.Sprintf("user %s performed %d operations in the window", user, counts[user]),
			Timestamp:     newestTimestamp(byUser[user]),
			AffectedUsers: []string{user},
			RecommendedActions: []string{
				"confirm the activity volume is expected for this user",
			},
		})
	}
	return alerts
}

// roleEscalationScanner flags updates that touch role or permission fields
// on sensitive tables.
type roleEscalationScanner struct{}

func (roleEscalationScanner) Name() string { return "role_escalation" }

var escalationFields = map[string]bool{
	"role":        true,
	"userRole":    true,
	"permissions": true,
	"isAdmin":     true,
}

func (sc roleEscalationScanner) Scan(entries []Entry) []Alert {
	var alerts []Alert
	for _, e := range entries {
		if e.Action != ActionUpdated || !sensitiveTables[e.TableName] {
			continue
		}
		for _, field := range e.ChangedFields {
			if !escalationFields[field] {
				continue
			}
			affected := []string{}
			if e.UserID != "" {
				affected = append(affected, e.UserID)
			}
			alerts = append(alerts, Alert{
				ID:            uuid.NewString(),
				Type:          sc.Name(),
				Severity:      SeverityCritical,
				Description:   fmt.Sprintf("field %q changed on %s record %s", field, e.TableName, e.RecordID),
				Timestamp:     e.Timestamp,
				AffectedUsers: affected,
				RecommendedActions: []string{
					"verify the privilege change was authorized",
					"review the actor's own permissions",
				},
			})
			break
		}
	}
	return alerts
}

// bulkAccessScanner flags one user touching one table an abnormal number of
// times, a pattern consistent with data exfiltration.
type bulkAccessScanner struct {
	threshold int
}

func (bulkAccessScanner) Name() string { return "bulk_data_access" }

func (sc bulkAccessScanner) Scan(entries []Entry) []Alert {
	type key struct{ user, table string }
	counts := make(map[key][]Entry)
	for _, e := range entries {
		if e.UserID == "" {
			continue
		}
		k := key{user: e.UserID, table: e.TableName}
		counts[k] = append(counts[k], e)
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].user != keys[j].user {
			return keys[i].user < keys[j].user
		}
		return keys[i].table < keys[j].table
	})

	var alerts []Alert
	for _, k := range keys {
		hits := counts[k]
		if len(hits) < sc.threshold {
			continue
		}
		alerts = append(alerts, Alert{
			ID:            uuid.NewString(),
			Type:          sc.Name(),
			Severity:      SeverityHigh,
			Description:   fmt.Sprintf("user %s touched table %s %d times in the window", k.user, k.table, len(hits)),
			Timestamp:     newestTimestamp(hits),
			AffectedUsers: []string{k.user},
			RecommendedActions: []string{
				"check whether a bulk export was scheduled",
				"review the records accessed for sensitivity",
			},
		})
	}
	return alerts
}

// offHoursScanner flags interactive mutations to sensitive tables outside
// expected working hours (UTC).
type offHoursScanner struct {
	startHour int // inclusive, start of the off-hours window
	endHour   int // exclusive, end of the off-hours window
}

func (offHoursScanner) Name() string { return "off_hours_access" }

func (sc offHoursScanner) Scan(entries []Entry) []Alert {
	var alerts []Alert
	for _, e := range entries {
		if !sensitiveTables[e.TableName] || e.HasFlag(FlagAutomatedChange) {
			continue
		}
		hour := e.Timestamp.UTC().Hour()
		if hour < sc.startHour && hour >= sc.endHour {
			continue
		}
		affected := []string{}
		if e.UserID != "" {
			affected = append(affected, e.UserID)
		}
		alerts = append(alerts, Alert{
			ID:            uuid.NewString(),
			Type:          sc.Name(),
			Severity:      SeverityMedium,
			Description:   fmt.Sprintf("%s on %s at %02d:00 UTC, outside expected hours", e.Action, e.TableName, hour),
			Timestamp:     e.Timestamp,
			AffectedUsers: affected,
			RecommendedActions: []string{
				"confirm the actor was expected to work at this time",
			},
		})
	}
	return alerts
}
