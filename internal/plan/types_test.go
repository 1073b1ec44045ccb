package plan

import (
	"encoding/json"
	"testing"
)

func TestNewState(t *testing.T) {
	state := NewState()
	if state.Phase != PhaseUpload {
		t.Errorf("expected phase %q, got %q", PhaseUpload, state.Phase)
	}
	if state.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema version %q, got %q", SchemaVersion, state.SchemaVersion)
	}
	if state.LastSavedAt != 0 {
		t.Errorf("expected zero last_saved_at, got %d", state.LastSavedAt)
	}
}

func TestKnownPhase(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhaseUpload, true},
		{PhaseRoleSelection, true},
		{PhasePreferences, true},
		{PhasePlanGeneration, true},
		{PhaseDashboard, true},
		{PhasePlan, true},
		{PhaseTopicStudy, true},
		{PhaseCoach, true},
		{Phase("checkout"), false},
		{Phase(""), false},
	}

	for _, tt := range tests {
		if got := KnownPhase(tt.phase); got != tt.want {
			t.Errorf("KnownPhase(%q) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestKnownTopicStatus(t *testing.T) {
	tests := []struct {
		status TopicStatus
		want   bool
	}{
		{TopicPending, true},
		{TopicInProgress, true},
		{TopicDone, true},
		{TopicStatus("completed"), false},
		{TopicStatus(""), false},
	}

	for _, tt := range tests {
		if got := KnownTopicStatus(tt.status); got != tt.want {
			t.Errorf("KnownTopicStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStateSerializationRoundTrip(t *testing.T) {
	subject := NewSubject("Algorithms")
	topic := NewTopic("Sorting")
	topic.Status = TopicInProgress
	subject.Topics = append(subject.Topics, topic)

	state := NewState()
	state.Phase = PhasePlan
	state.SourceText = "syllabus text"
	state.SourceFileName = "syllabus.pdf"
	state.UserPreferences = Preferences{TargetRole: "Backend Engineer", DailyStudyHours: 2.5, StudyDays: []string{"mon", "wed"}}
	state.PlanData = &PlanData{Subjects: []Subject{subject}}
	state.StudyingSubjectID = subject.ID
	state.StudyingTopicID = topic.ID
	state.CoachMessages = []ChatMessage{NewUserMessage("explain quicksort")}
	state.LastSavedAt = 1700000000000

	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded ApplicationState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if decoded.Phase != PhasePlan {
		t.Errorf("expected phase %q, got %q", PhasePlan, decoded.Phase)
	}
	if decoded.SourceText != "syllabus text" || decoded.SourceFileName != "syllabus.pdf" {
		t.Errorf("source document fields lost: %+v", decoded)
	}
	if decoded.UserPreferences.DailyStudyHours != 2.5 {
		t.Errorf("expected 2.5 daily hours, got %v", decoded.UserPreferences.DailyStudyHours)
	}
	if len(decoded.PlanData.Subjects) != 1 || len(decoded.PlanData.Subjects[0].Topics) != 1 {
		t.Fatalf("plan structure lost: %+v", decoded.PlanData)
	}
	if decoded.PlanData.Subjects[0].Topics[0].Status != TopicInProgress {
		t.Errorf("topic status lost: %+v", decoded.PlanData.Subjects[0].Topics[0])
	}
	if decoded.LastSavedAt != 1700000000000 {
		t.Errorf("expected last_saved_at 1700000000000, got %d", decoded.LastSavedAt)
	}
	if len(decoded.CoachMessages) != 1 || decoded.CoachMessages[0].Sender != SenderUser {
		t.Errorf("coach messages lost: %+v", decoded.CoachMessages)
	}
}

func TestSerializationOmitsEmptyOptionals(t *testing.T) {
	raw, err := json.Marshal(NewState())
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	for _, key := range []string{"plan_data", "coach_messages", "studying_subject_id", "dashboard_snapshot"} {
		if _, present := doc[key]; present {
			t.Errorf("empty optional %q should be omitted, got: %s", key, raw)
		}
	}
	for _, key := range []string{"phase", "last_saved_at", "schema_version"} {
		if _, present := doc[key]; !present {
			t.Errorf("required field %q missing, got: %s", key, raw)
		}
	}
}

func TestNewSubjectAndTopicAssignIDs(t *testing.T) {
	a := NewSubject("Math")
	b := NewSubject("Math")
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		t.Errorf("subjects must get unique ids, got %q and %q", a.ID, b.ID)
	}

	topic := NewTopic("Limits")
	if topic.ID == "" {
		t.Error("topic must get an id")
	}
	if topic.Status != TopicPending {
		t.Errorf("new topic should be pending, got %q", topic.Status)
	}
}

func TestFindSubjectAndTopic(t *testing.T) {
	subject := NewSubject("Networks")
	topic := NewTopic("TCP")
	subject.Topics = append(subject.Topics, topic)
	p := &PlanData{Subjects: []Subject{subject}}

	if got := p.FindSubject(subject.ID); got == nil || got.Name != "Networks" {
		t.Errorf("FindSubject(%q) = %+v", subject.ID, got)
	}
	if got := p.FindSubject("missing"); got != nil {
		t.Errorf("expected nil for unknown subject, got %+v", got)
	}
	if got := p.FindTopic(topic.ID); got == nil || got.Name != "TCP" {
		t.Errorf("FindTopic(%q) = %+v", topic.ID, got)
	}
	if got := p.FindTopic("missing"); got != nil {
		t.Errorf("expected nil for unknown topic, got %+v", got)
	}

	var nilPlan *PlanData
	if nilPlan.FindSubject("x") != nil || nilPlan.FindTopic("x") != nil {
		t.Error("nil plan lookups must return nil")
	}
}

func TestMessageConstructors(t *testing.T) {
	user := NewUserMessage("hi")
	if user.Sender != SenderUser || user.Text != "hi" || user.ID == "" || user.Timestamp == 0 {
		t.Errorf("bad user message: %+v", user)
	}

	failed := NewAssistantMessage("model unavailable", true)
	if failed.Sender != SenderAssistant || !failed.Error {
		t.Errorf("bad assistant error message: %+v", failed)
	}
}
