package plan

import "testing"

// twoSubjectPlan builds the canonical progress fixture: 5 topics, 3 done,
// 1 in progress, 1 pending.
func twoSubjectPlan() *PlanData {
	algo := NewSubject("Algorithms")
	for _, status := range []TopicStatus{TopicDone, TopicDone, TopicInProgress} {
		topic := NewTopic("t")
		topic.Status = status
		algo.Topics = append(algo.Topics, topic)
	}

	nets := NewSubject("Networks")
	for _, status := range []TopicStatus{TopicDone, TopicPending} {
		topic := NewTopic("t")
		topic.Status = status
		nets.Topics = append(nets.Topics, topic)
	}

	return &PlanData{Subjects: []Subject{algo, nets}}
}

func TestComputeDashboard(t *testing.T) {
	snap := ComputeDashboard(twoSubjectPlan())

	if snap.TotalSubjects != 2 {
		t.Errorf("expected 2 subjects, got %d", snap.TotalSubjects)
	}
	if snap.TotalTopics != 5 {
		t.Errorf("expected 5 topics, got %d", snap.TotalTopics)
	}
	if snap.CompletedTopics != 3 {
		t.Errorf("expected 3 completed, got %d", snap.CompletedTopics)
	}
	if snap.InProgressTopics != 1 {
		t.Errorf("expected 1 in progress, got %d", snap.InProgressTopics)
	}
	if snap.CompletionPercentage != 60 {
		t.Errorf("expected 60%%, got %v", snap.CompletionPercentage)
	}

	if len(snap.Subjects) != 2 {
		t.Fatalf("expected per-subject breakdown, got %+v", snap.Subjects)
	}
	if snap.Subjects[0].CompletedTopics != 2 || snap.Subjects[0].TotalTopics != 3 {
		t.Errorf("bad first subject progress: %+v", snap.Subjects[0])
	}
	if snap.Subjects[1].Percentage != 50 {
		t.Errorf("expected 50%% on second subject, got %v", snap.Subjects[1].Percentage)
	}
}

func TestComputeDashboardEmpty(t *testing.T) {
	for name, p := range map[string]*PlanData{
		"nil plan":    nil,
		"no subjects": {},
	} {
		snap := ComputeDashboard(p)
		if snap.TotalTopics != 0 || snap.CompletionPercentage != 0 {
			t.Errorf("%s: expected zero snapshot, got %+v", name, snap)
		}
	}
}

func TestComputeDashboardRounding(t *testing.T) {
	subject := NewSubject("S")
	for i := 0; i < 3; i++ {
		topic := NewTopic("t")
		if i == 0 {
			topic.Status = TopicDone
		}
		subject.Topics = append(subject.Topics, topic)
	}

	snap := ComputeDashboard(&PlanData{Subjects: []Subject{subject}})
	if snap.CompletionPercentage != 33.33 {
		t.Errorf("expected 33.33, got %v", snap.CompletionPercentage)
	}
}

func TestQuestionMastery(t *testing.T) {
	tests := []struct {
		name string
		qi   QuestionInteraction
		want Mastery
	}{
		{"untouched", QuestionInteraction{}, MasteryLearning},
		{"first try correct", QuestionInteraction{Attempts: 1, Correct: true}, MasteryMastered},
		{"second try correct", QuestionInteraction{Attempts: 2, Correct: true}, MasteryMastered},
		{"eventually correct", QuestionInteraction{Attempts: 5, Correct: true}, MasteryPracticing},
		{"still wrong", QuestionInteraction{Attempts: 3}, MasteryPracticing},
	}

	for _, tt := range tests {
		if got := QuestionMastery(tt.qi); got != tt.want {
			t.Errorf("%s: QuestionMastery = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFlashcardMastery(t *testing.T) {
	tests := []struct {
		name string
		fr   FlashcardReview
		want Mastery
	}{
		{"untouched", FlashcardReview{}, MasteryLearning},
		{"reviewed once", FlashcardReview{SelfAssessment: "hard", ReviewCount: 1}, MasteryPracticing},
		{"easy but early", FlashcardReview{SelfAssessment: "easy", ReviewCount: 1}, MasteryPracticing},
		{"easy and repeated", FlashcardReview{SelfAssessment: "easy", ReviewCount: 3}, MasteryMastered},
	}

	for _, tt := range tests {
		if got := FlashcardMastery(tt.fr); got != tt.want {
			t.Errorf("%s: FlashcardMastery = %q, want %q", tt.name, got, tt.want)
		}
	}
}
