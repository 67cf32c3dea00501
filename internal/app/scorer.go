package app

import (
	"math"

	"event-rewards-service/internal/domain"
)

// ScoreQuiz grades a submitted answer set against a quiz definition.
// It is a pure function: the same answers always produce the same
// result. Missing answers and answer ids that do not belong to the
// referenced question count as incorrect, never as an error. A quiz
// with zero questions is a configuration fault and returns ErrEmptyQuiz.
func ScoreQuiz(quiz *domain.Quiz, answers map[string]string) (domain.QuizResult, error) {
	if quiz == nil || len(quiz.Questions) == 0 {
		return domain.QuizResult{}, domain.ErrEmptyQuiz
	}

	correct := 0
	for _, question := range quiz.Questions {
		chosen, ok := answers[question.ID]
		if !ok {
			continue
		}
		for _, answer := range question.Answers {
			if answer.ID == chosen && answer.Correct {
				correct++
				break
			}
		}
	}

	total := len(quiz.Questions)
	percent := int(math.Round(100 * float64(correct) / float64(total)))
	return domain.QuizResult{
		CorrectCount:   correct,
		TotalQuestions: total,
		ScorePercent:   percent,
		Passed:         percent >= quiz.PassThreshold,
	}, nil
}
