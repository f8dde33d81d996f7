package dto

// RiskCounts splits the student population by risk level.
type RiskCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// DashboardStats is the admin overview rollup.
type DashboardStats struct {
	TotalStudents     int        `json:"totalStudents"`
	RiskCounts        RiskCounts `json:"riskCounts"`
	AverageScore      float64    `json:"averageScore"`
	UnreadAlertsCount int        `json:"unreadAlertsCount"`
}
