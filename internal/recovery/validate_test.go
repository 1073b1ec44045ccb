package recovery

import (
	"testing"

	"github.com/sbenjam1n/studysync/internal/plan"
)

func validState() *plan.ApplicationState {
	subject := plan.NewSubject("Algorithms")
	topic := plan.NewTopic("Sorting")
	topic.Status = plan.TopicDone
	subject.Topics = append(subject.Topics, topic)

	state := plan.NewState()
	state.Phase = plan.PhasePlan
	state.SourceText = "syllabus"
	state.PlanData = &plan.PlanData{Subjects: []plan.Subject{subject}}
	state.LastSavedAt = 1000
	return state
}

func failedCheck(result *ValidationResult) string {
	for _, c := range result.Checks {
		if !c.Passed {
			return c.Check
		}
	}
	return ""
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name  string
		state *plan.ApplicationState
	}{
		{"fresh state", plan.NewState()},
		{"full state", validState()},
		{"upload phase without source", &plan.ApplicationState{Phase: plan.PhaseUpload}},
	}

	for _, tt := range tests {
		if result := Validate(tt.state); !result.Valid {
			t.Errorf("%s: expected valid, failed %q: %+v", tt.name, failedCheck(result), result.Checks)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	duplicateTopics := validState()
	duplicateTopics.PlanData.Subjects[0].Topics = append(
		duplicateTopics.PlanData.Subjects[0].Topics,
		duplicateTopics.PlanData.Subjects[0].Topics[0],
	)

	badStatus := validState()
	badStatus.PlanData.Subjects[0].Topics[0].Status = "finished"

	emptySubjectID := validState()
	emptySubjectID.PlanData.Subjects[0].ID = ""

	pastUploadNoSource := validState()
	pastUploadNoSource.SourceText = ""

	negativeClock := validState()
	negativeClock.LastSavedAt = -1

	unknownPhase := validState()
	unknownPhase.Phase = "checkout"

	tests := []struct {
		name      string
		state     *plan.ApplicationState
		wantCheck string
	}{
		{"nil state", nil, "present"},
		{"unknown phase", unknownPhase, "phase"},
		{"progress without source", pastUploadNoSource, "source_text"},
		{"negative clock", negativeClock, "last_saved_at"},
		{"duplicate topic ids", duplicateTopics, "topic_ids"},
		{"unknown topic status", badStatus, "topic_status"},
		{"empty subject id", emptySubjectID, "subject_ids"},
	}

	for _, tt := range tests {
		result := Validate(tt.state)
		if result.Valid {
			t.Errorf("%s: expected invalid", tt.name)
			continue
		}
		if got := failedCheck(result); got != tt.wantCheck {
			t.Errorf("%s: failed check %q, want %q", tt.name, got, tt.wantCheck)
		}
	}
}

func TestValidateDuplicateTopicIDAcrossSubjects(t *testing.T) {
	state := validState()
	other := plan.NewSubject("Networks")
	other.Topics = append(other.Topics, state.PlanData.Subjects[0].Topics[0])
	state.PlanData.Subjects = append(state.PlanData.Subjects, other)

	if result := Validate(state); result.Valid {
		t.Error("topic ids must be unique across subjects")
	}
}

func TestNormalizeClearsDanglingCursors(t *testing.T) {
	state := validState()
	state.StudyingSubjectID = "gone"
	state.StudyingTopicID = "also gone"

	out := Normalize(state)
	if out.StudyingSubjectID != "" || out.StudyingTopicID != "" {
		t.Errorf("dangling cursors not cleared: %+v", out)
	}
}

func TestNormalizeKeepsResolvingCursors(t *testing.T) {
	state := validState()
	state.StudyingSubjectID = state.PlanData.Subjects[0].ID
	state.StudyingTopicID = state.PlanData.Subjects[0].Topics[0].ID

	out := Normalize(state)
	if out.StudyingSubjectID == "" || out.StudyingTopicID == "" {
		t.Errorf("valid cursors were cleared: %+v", out)
	}
}

func TestNormalizeRecomputesDashboard(t *testing.T) {
	state := validState()
	state.DashboardSnapshot = &plan.DashboardSnapshot{CompletedTopics: 99}

	out := Normalize(state)
	if out.DashboardSnapshot.CompletedTopics != 1 {
		t.Errorf("stale snapshot kept: %+v", out.DashboardSnapshot)
	}
	if out.DashboardSnapshot.CompletionPercentage != 100 {
		t.Errorf("expected 100%%, got %v", out.DashboardSnapshot.CompletionPercentage)
	}
}

func TestNormalizeNil(t *testing.T) {
	if Normalize(nil) != nil {
		t.Error("nil state should stay nil")
	}
}
