package plan

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current version stamped on every persisted state.
const SchemaVersion = "2.0"

// Phase is the current step in the guided study workflow.
type Phase string

const (
	PhaseUpload         Phase = "upload"
	PhaseRoleSelection  Phase = "role_selection"
	PhasePreferences    Phase = "preferences"
	PhasePlanGeneration Phase = "plan_generation"
	PhaseDashboard      Phase = "dashboard"
	PhasePlan           Phase = "plan"
	PhaseTopicStudy     Phase = "topic_study"
	PhaseCoach          Phase = "coach"
)

// KnownPhase reports whether p is one of the defined workflow phases.
func KnownPhase(p Phase) bool {
	switch p {
	case PhaseUpload, PhaseRoleSelection, PhasePreferences, PhasePlanGeneration,
		PhaseDashboard, PhasePlan, PhaseTopicStudy, PhaseCoach:
		return true
	}
	return false
}

// ApplicationState is the single aggregate persisted locally and mirrored
// to the cloud. LastSavedAt is the conflict-resolution clock.
type ApplicationState struct {
	Phase                      Phase              `json:"phase"`
	SourceText                 string             `json:"source_text"`
	SourceFileName             string             `json:"source_file_name,omitempty"`
	UserPreferences            Preferences        `json:"user_preferences"`
	ExtractedRoles             []string           `json:"extracted_roles,omitempty"`
	RoleClarificationQuestions []string           `json:"role_clarification_questions,omitempty"`
	RoleExtractionError        string             `json:"role_extraction_error,omitempty"`
	PlanData                   *PlanData          `json:"plan_data,omitempty"`
	StudyingSubjectID          string             `json:"studying_subject_id,omitempty"`
	StudyingTopicID            string             `json:"studying_topic_id,omitempty"`
	CoachMessages              []ChatMessage      `json:"coach_messages,omitempty"`
	DashboardSnapshot          *DashboardSnapshot `json:"dashboard_snapshot,omitempty"`
	LastSavedAt                int64              `json:"last_saved_at"`
	SchemaVersion              string             `json:"schema_version"`
}

// NewState returns an empty state at the upload phase.
func NewState() *ApplicationState {
	return &ApplicationState{
		Phase:         PhaseUpload,
		SchemaVersion: SchemaVersion,
	}
}

// Preferences holds the user's study preferences.
type Preferences struct {
	TargetRole      string   `json:"target_role"`
	DailyStudyHours float64  `json:"daily_study_hours"`
	StudyDays       []string `json:"study_days,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// PlanData is the generated study plan: an ordered list of subjects.
// Error and ClarificationQuestions carry generation-level feedback.
type PlanData struct {
	Subjects               []Subject `json:"subjects"`
	Error                  string    `json:"error,omitempty"`
	ClarificationQuestions []string  `json:"clarification_questions,omitempty"`
}

// Subject is one exam subject owning an ordered list of topics.
type Subject struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// NewSubject creates a subject with a freshly assigned id.
func NewSubject(name string) Subject {
	return Subject{ID: uuid.NewString(), Name: name}
}

// TopicStatus is a topic's progress status. It is independent of whether
// study content has been generated for the topic.
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicInProgress TopicStatus = "in_progress"
	TopicDone       TopicStatus = "done"
)

// KnownTopicStatus reports whether s is one of the defined statuses.
func KnownTopicStatus(s TopicStatus) bool {
	return s == TopicPending || s == TopicInProgress || s == TopicDone
}

// Topic is a single study unit within a subject.
type Topic struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Status       TopicStatus        `json:"status"`
	Content      *TopicContent      `json:"content,omitempty"`
	Interactions *TopicInteractions `json:"interactions,omitempty"`
}

// NewTopic creates a pending topic with a freshly assigned id.
func NewTopic(name string) Topic {
	return Topic{ID: uuid.NewString(), Name: name, Status: TopicPending}
}

// TopicContent is the generated study material for a topic.
type TopicContent struct {
	Summary              string      `json:"summary,omitempty"`
	Questions            []Question  `json:"questions,omitempty"`
	Flashcards           []Flashcard `json:"flashcards,omitempty"`
	EssayQuestions       []string    `json:"essay_questions,omitempty"`
	DeeperUnderstanding  string      `json:"deeper_understanding,omitempty"`
}

// Question is one generated practice question.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Flashcard is one generated flashcard.
type Flashcard struct {
	ID    string `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

// TopicInteractions records per-question and per-flashcard practice state.
type TopicInteractions struct {
	Questions  map[string]QuestionInteraction `json:"questions,omitempty"`
	Flashcards map[string]FlashcardReview     `json:"flashcards,omitempty"`
}

// QuestionInteraction is the user's answer/reveal/attempt state for one question.
type QuestionInteraction struct {
	Answer   string `json:"answer,omitempty"`
	Revealed bool   `json:"revealed,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Correct  bool   `json:"correct,omitempty"`
}

// FlashcardReview is the user's self-assessment state for one flashcard.
type FlashcardReview struct {
	SelfAssessment string `json:"self_assessment,omitempty"`
	ReviewCount    int    `json:"review_count,omitempty"`
	LastReviewedAt int64  `json:"last_reviewed_at,omitempty"`
}

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one entry in the AI coach conversation.
type ChatMessage struct {
	ID        string `json:"id"`
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Error     bool   `json:"error,omitempty"`
}

// NewUserMessage creates a user chat message stamped with the current time.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Sender: SenderUser, Text: text, Timestamp: nowMillis()}
}

// NewAssistantMessage creates an assistant chat message stamped with the current time.
func NewAssistantMessage(text string, isError bool) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Sender: SenderAssistant, Text: text, Timestamp: nowMillis(), Error: isError}
}

// DashboardSnapshot is a derived progress aggregate. It is a cache of
// PlanData, never independently authoritative, and safe to recompute.
type DashboardSnapshot struct {
	TotalSubjects        int               `json:"total_subjects"`
	TotalTopics          int               `json:"total_topics"`
	CompletedTopics      int               `json:"completed_topics"`
	InProgressTopics     int               `json:"in_progress_topics"`
	CompletionPercentage float64           `json:"completion_percentage"`
	Subjects             []SubjectProgress `json:"subjects,omitempty"`
}

// SubjectProgress is per-subject progress within a dashboard snapshot.
type SubjectProgress struct {
	SubjectID       string  `json:"subject_id"`
	Name            string  `json:"name"`
	TotalTopics     int     `json:"total_topics"`
	CompletedTopics int     `json:"completed_topics"`
	Percentage      float64 `json:"percentage"`
}

// FindSubject returns the subject with the given id, or nil.
func (p *PlanData) FindSubject(id string) *Subject {
	if p == nil {
		return nil
	}
	for i := range p.Subjects {
		if p.Subjects[i].ID == id {
			return &p.Subjects[i]
		}
	}
	return nil
}

// FindTopic returns the topic with the given id from any subject, or nil.
func (p *PlanData) FindTopic(id string) *Topic {
	if p == nil {
		return nil
	}
	for i := range p.Subjects {
		for j := range p.Subjects[i].Topics {
			if p.Subjects[i].Topics[j].ID == id {
				return &p.Subjects[i].Topics[j]
			}
		}
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
