package dto

// MarkAttendanceResult acknowledges an attendance mark.
type MarkAttendanceResult struct {
	Success bool `json:"success"`
}

// SubmitQuizResult reports the accuracy of the attempt just submitted, even when a better attempt is kept.
type SubmitQuizResult struct {
	Success  bool    `json:"success"`
	Accuracy float64 `json:"accuracy"`
}

// SubmitAssignmentResult reports whether the submission arrived after the due date.
type SubmitAssignmentResult struct {
	Success bool `json:"success"`
	IsLate  bool `json:"isLate"`
}

// MarkAllAlertsReadResult reports how many alerts changed state.
type MarkAllAlertsReadResult struct {
	Updated int64 `json:"updated"`
}
