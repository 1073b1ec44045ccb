package plan

import "math"

// ComputeDashboard derives a fresh snapshot from plan data. A nil or empty
// plan yields an all-zero snapshot.
func ComputeDashboard(p *PlanData) *DashboardSnapshot {
	snap := &DashboardSnapshot{}
	if p == nil {
		return snap
	}

	snap.TotalSubjects = len(p.Subjects)
	for _, subject := range p.Subjects {
		sp := SubjectProgress{
			SubjectID:   subject.ID,
			Name:        subject.Name,
			TotalTopics: len(subject.Topics),
		}
		for _, topic := range subject.Topics {
			snap.TotalTopics++
			switch topic.Status {
			case TopicDone:
				snap.CompletedTopics++
				sp.CompletedTopics++
			case TopicInProgress:
				snap.InProgressTopics++
			}
		}
		sp.Percentage = percentage(sp.CompletedTopics, sp.TotalTopics)
		snap.Subjects = append(snap.Subjects, sp)
	}

	snap.CompletionPercentage = percentage(snap.CompletedTopics, snap.TotalTopics)
	return snap
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

// Mastery is a derived classification of practice status. It is
// informational only, never a scheduling input.
type Mastery string

const (
	MasteryLearning   Mastery = "learning"
	MasteryPracticing Mastery = "practicing"
	MasteryMastered   Mastery = "mastered"
)

// QuestionMastery classifies a question's practice status from its
// interaction state.
func QuestionMastery(qi QuestionInteraction) Mastery {
	switch {
	case qi.Correct && qi.Attempts <= 2:
		return MasteryMastered
	case qi.Attempts > 0:
		return MasteryPracticing
	default:
		return MasteryLearning
	}
}

// FlashcardMastery classifies a flashcard's practice status from its
// review state.
func FlashcardMastery(fr FlashcardReview) Mastery {
	switch {
	case fr.SelfAssessment == "easy" && fr.ReviewCount >= 3:
		return MasteryMastered
	case fr.ReviewCount > 0:
		return MasteryPracticing
	default:
		return MasteryLearning
	}
}
