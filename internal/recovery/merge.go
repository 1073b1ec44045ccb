package recovery

import (
	"sort"

	"github.com/sbenjam1n/studysync/internal/plan"
)

// Merge combines two valid but divergent states field by field. The newer
// side (by last_saved_at) is the base; the rules below exist so the merge
// never silently drops the user's uploaded document, generated plan, or
// visible progress, whichever side they live on.
func Merge(local, cloud *plan.ApplicationState) *plan.ApplicationState {
	if local == nil {
		return cloud
	}
	if cloud == nil {
		return local
	}

	newer, older := local, cloud
	if cloud.LastSavedAt >= local.LastSavedAt {
		newer, older = cloud, local
	}

	merged := *newer

	// Never drop the uploaded document.
	if merged.SourceText == "" && older.SourceText != "" {
		merged.SourceText = older.SourceText
		merged.SourceFileName = older.SourceFileName
	}
	if merged.SourceFileName == "" {
		merged.SourceFileName = older.SourceFileName
	}

	// Never drop the generated plan; when both sides carry one, keep the
	// side with more completed topics so visible progress never regresses.
	merged.PlanData = pickPlan(newer.PlanData, older.PlanData)

	merged.UserPreferences = overlayPreferences(older.UserPreferences, newer.UserPreferences)

	if len(merged.ExtractedRoles) == 0 {
		merged.ExtractedRoles = older.ExtractedRoles
	}

	merged.CoachMessages = mergeMessages(newer.CoachMessages, older.CoachMessages)

	if merged.LastSavedAt < older.LastSavedAt {
		merged.LastSavedAt = older.LastSavedAt
	}
	merged.DashboardSnapshot = plan.ComputeDashboard(merged.PlanData)
	return &merged
}

// pickPlan prefers a non-empty plan; between two non-empty plans it keeps
// the one reporting the higher completed count (the newer side on a tie).
func pickPlan(newer, older *plan.PlanData) *plan.PlanData {
	if newer == nil || len(newer.Subjects) == 0 {
		if older != nil && len(older.Subjects) > 0 {
			return older
		}
		return newer
	}
	if older == nil || len(older.Subjects) == 0 {
		return newer
	}
	if completedCount(older) > completedCount(newer) {
		return older
	}
	return newer
}

func completedCount(p *plan.PlanData) int {
	count := 0
	for _, subject := range p.Subjects {
		for _, topic := range subject.Topics {
			if topic.Status == plan.TopicDone {
				count++
			}
		}
	}
	return count
}

// overlayPreferences lays the newer side's set fields over the older's.
func overlayPreferences(base, over plan.Preferences) plan.Preferences {
	merged := base
	if over.TargetRole != "" {
		merged.TargetRole = over.TargetRole
	}
	if over.DailyStudyHours != 0 {
		merged.DailyStudyHours = over.DailyStudyHours
	}
	if len(over.StudyDays) > 0 {
		merged.StudyDays = over.StudyDays
	}
	if over.Notes != "" {
		merged.Notes = over.Notes
	}
	return merged
}

// mergeMessages unions both chat histories, de-duplicating on
// (timestamp, text) and re-sorting by timestamp ascending.
func mergeMessages(a, b []plan.ChatMessage) []plan.ChatMessage {
	type key struct {
		ts   int64
		text string
	}
	seen := map[key]bool{}
	var merged []plan.ChatMessage
	for _, msg := range append(append([]plan.ChatMessage{}, a...), b...) {
		k := key{ts: msg.Timestamp, text: msg.Text}
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, msg)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
