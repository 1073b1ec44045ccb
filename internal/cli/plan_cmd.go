package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/studysync/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the study plan as a tree with per-topic progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		state, err := st.LoadState()
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if state == nil || state.PlanData == nil || len(state.PlanData.Subjects) == 0 {
			fmt.Println("No study plan yet.")
			return nil
		}

		snapshot := plan.ComputeDashboard(state.PlanData)
		fmt.Printf("Study plan: %d subject(s), %d/%d topics done (%.1f%%)\n\n",
			snapshot.TotalSubjects, snapshot.CompletedTopics, snapshot.TotalTopics, snapshot.CompletionPercentage)

		for _, subject := range state.PlanData.Subjects {
			fmt.Printf("%s\n", subject.Name)
			for i, topic := range subject.Topics {
				branch := "├──"
				if i == len(subject.Topics)-1 {
					branch = "└──"
				}
				marker := statusMarker(topic.Status)
				cursor := ""
				if subject.ID == state.StudyingSubjectID && topic.ID == state.StudyingTopicID {
					cursor = "  ← studying"
				}
				fmt.Printf("  %s %s %s%s\n", branch, marker, topic.Name, cursor)

				if progress, err := st.LoadTopicProgress(topic.ID); err == nil && progress != nil {
					mastered := 0
					for _, qi := range progress.Interactions.Questions {
						if plan.QuestionMastery(qi) == plan.MasteryMastered {
							mastered++
						}
					}
					for _, fr := range progress.Interactions.Flashcards {
						if plan.FlashcardMastery(fr) == plan.MasteryMastered {
							mastered++
						}
					}
					total := len(progress.Interactions.Questions) + len(progress.Interactions.Flashcards)
					if total > 0 {
						indent := "  │   "
						if i == len(subject.Topics)-1 {
							indent = "      "
						}
						fmt.Printf("%s%d/%d items mastered\n", indent, mastered, total)
					}
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func statusMarker(status plan.TopicStatus) string {
	switch status {
	case plan.TopicDone:
		return "[x]"
	case plan.TopicInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}
