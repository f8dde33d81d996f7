package models

import "time"

// Quiz is an assessable quiz definition.
type Quiz struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	TotalQuestions int       `db:"total_questions" json:"total_questions"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// QuizSubmission keeps the best attempt of a student on a quiz.
type QuizSubmission struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	QuizID      string    `db:"quiz_id" json:"quiz_id"`
	Score       float64   `db:"score" json:"score"`
	Accuracy    float64   `db:"accuracy" json:"accuracy"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`

	// TotalQuestions is the quiz size at submission time.
	TotalQuestions int `db:"total_questions" json:"total_questions"`
}

// QuizSubmissionDetail joins the quiz title onto a submission.
type QuizSubmissionDetail struct {
	QuizSubmission
	QuizTitle string `db:"quiz_title" json:"quiz_title"`
}

// QuizStats summarises a student's quiz results.
type QuizStats struct {
	AverageAccuracy float64 `json:"average_accuracy"`
	TotalQuizzes    int     `json:"total_quizzes"`
	BestScore       float64 `json:"best_score"`
}

// QuizTally aggregates a student's stored quiz accuracies.
type QuizTally struct {
	Count        int     `db:"count"`
	MeanAccuracy float64 `db:"mean_accuracy"`
	BestAccuracy float64 `db:"best_accuracy"`
}
