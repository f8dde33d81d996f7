package models

import "time"

// Assignment is a graded task with a deadline.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	TotalPoints float64   `db:"total_points" json:"total_points"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AssignmentSubmission is the single allowed submission of a student for an assignment.
type AssignmentSubmission struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	Score        float64   `db:"score" json:"score"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	IsLate       bool      `db:"is_late" json:"is_late"`

	// TotalPoints is the assignment maximum at submission time.
	TotalPoints float64 `db:"total_points" json:"total_points"`
}

// AssignmentSubmissionDetail joins assignment metadata onto a submission.
type AssignmentSubmissionDetail struct {
	AssignmentSubmission
	AssignmentTitle string    `db:"assignment_title" json:"assignment_title"`
	DueDate         time.Time `db:"due_date" json:"due_date"`
}

// AssignmentStats summarises a student's assignment progress.
type AssignmentStats struct {
	CompletionRate    float64 `json:"completion_rate"`
	AverageScore      float64 `json:"average_score"`
	OnTimeSubmissions int     `json:"on_time_submissions"`
	TotalSubmissions  int     `json:"total_submissions"`
	TotalAssignments  int     `json:"total_assignments"`
}

// AssignmentTally aggregates a student's submissions against the active assignment set.
// MeanPercent is the mean of score/total_points*100 over the student's submissions.
type AssignmentTally struct {
	ActiveAssignments int     `db:"active_assignments"`
	Submissions       int     `db:"submissions"`
	OnTime            int     `db:"on_time"`
	MeanPercent       float64 `db:"mean_percent"`
}
