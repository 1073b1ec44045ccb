package recovery

import (
	"fmt"

	"github.com/sbenjam1n/studysync/internal/plan"
)

// CheckResult is one structural check outcome.
type CheckResult struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ValidationResult is the outcome of validating one candidate state.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Checks []CheckResult `json:"checks"`
}

func (r *ValidationResult) fail(check, detail string) {
	r.Valid = false
	r.Checks = append(r.Checks, CheckResult{Check: check, Passed: false, Detail: detail})
}

func (r *ValidationResult) pass(check string) {
	r.Checks = append(r.Checks, CheckResult{Check: check, Passed: true})
}

// Validate checks a candidate state against the structural invariants a
// usable state must satisfy. An invalid candidate is discarded from
// reconciliation, so these checks are deliberately about structure, not
// taste: a state that merely looks odd must still pass.
func Validate(state *plan.ApplicationState) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if state == nil {
		result.fail("present", "state is nil")
		return result
	}
	result.pass("present")

	if !plan.KnownPhase(state.Phase) {
		result.fail("phase", fmt.Sprintf("unknown phase %q", state.Phase))
	} else {
		result.pass("phase")
	}

	// Progress beyond the initial upload requires the uploaded document.
	if state.Phase != plan.PhaseUpload && state.SourceText == "" {
		result.fail("source_text", fmt.Sprintf("phase %q with empty source text", state.Phase))
	} else {
		result.pass("source_text")
	}

	if state.LastSavedAt < 0 {
		result.fail("last_saved_at", "negative timestamp")
	} else {
		result.pass("last_saved_at")
	}

	validatePlan(state.PlanData, result)
	return result
}

func validatePlan(p *plan.PlanData, result *ValidationResult) {
	if p == nil {
		result.pass("plan_data")
		return
	}

	subjectIDs := map[string]bool{}
	topicIDs := map[string]bool{}
	for _, subject := range p.Subjects {
		if subject.ID == "" {
			result.fail("subject_ids", fmt.Sprintf("subject %q has no id", subject.Name))
			return
		}
		if subjectIDs[subject.ID] {
			result.fail("subject_ids", fmt.Sprintf("duplicate subject id %s", subject.ID))
			return
		}
		subjectIDs[subject.ID] = true

		for _, topic := range subject.Topics {
			if topic.ID == "" {
				result.fail("topic_ids", fmt.Sprintf("topic %q has no id", topic.Name))
				return
			}
			if topicIDs[topic.ID] {
				result.fail("topic_ids", fmt.Sprintf("duplicate topic id %s", topic.ID))
				return
			}
			topicIDs[topic.ID] = true

			if !plan.KnownTopicStatus(topic.Status) {
				result.fail("topic_status", fmt.Sprintf("topic %s has unknown status %q", topic.ID, topic.Status))
				return
			}
		}
	}
	result.pass("plan_data")
}

// Normalize repairs the derivable parts of a valid state: study cursors
// that no longer resolve into the plan are cleared rather than treated as
// corruption, and the dashboard snapshot is recomputed from the plan
// (it is a cache, never authoritative).
func Normalize(state *plan.ApplicationState) *plan.ApplicationState {
	if state == nil {
		return nil
	}
	if state.StudyingSubjectID != "" && state.PlanData.FindSubject(state.StudyingSubjectID) == nil {
		state.StudyingSubjectID = ""
	}
	if state.StudyingTopicID != "" && state.PlanData.FindTopic(state.StudyingTopicID) == nil {
		state.StudyingTopicID = ""
	}
	if state.PlanData != nil {
		state.DashboardSnapshot = plan.ComputeDashboard(state.PlanData)
	}
	return state
}
