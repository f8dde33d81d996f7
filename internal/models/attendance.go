package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// AttendanceDateLayout formats the calendar day key of an attendance record.
const AttendanceDateLayout = "2006-01-02"

// AttendanceRecord is one student's status for one calendar day.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      string           `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Timestamp time.Time        `db:"timestamp" json:"timestamp"`
}

// AttendanceStats summarises a student's recent attendance.
type AttendanceStats struct {
	Total          int     `json:"total"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// AttendanceTally counts attendance records by status over a window.
type AttendanceTally struct {
	Total   int `db:"total"`
	Present int `db:"present"`
	Late    int `db:"late"`
	Absent  int `db:"absent"`
}
