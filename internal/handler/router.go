package handler

import "github.com/gin-gonic/gin"

// Handlers groups every API handler mounted by RegisterRoutes.
type Handlers struct {
	Students    *StudentHandler
	Attendance  *AttendanceHandler
	Quizzes     *QuizHandler
	Assignments *AssignmentHandler
	Performance *PerformanceHandler
	Alerts      *AlertHandler
	Dashboard   *DashboardHandler
	Reports     *ReportHandler
}

// RegisterRoutes mounts the API under group.
func RegisterRoutes(group *gin.RouterGroup, h Handlers) {
	students := group.Group("/students")
	students.POST("", h.Students.Create)
	students.GET("", h.Students.List)
	students.GET("/lookup/:studentId", h.Students.Lookup)
	students.GET("/:id", h.Students.Get)
	students.GET("/:id/attendance", h.Attendance.ListForStudent)
	students.GET("/:id/attendance/stats", h.Attendance.StatsForStudent)
	students.GET("/:id/quizzes", h.Quizzes.ListForStudent)
	students.GET("/:id/quizzes/stats", h.Quizzes.StatsForStudent)
	students.GET("/:id/assignments", h.Assignments.ListForStudent)
	students.GET("/:id/assignments/stats", h.Assignments.StatsForStudent)
	students.GET("/:id/performance", h.Performance.History)

	group.POST("/attendance", h.Attendance.Mark)

	quizzes := group.Group("/quizzes")
	quizzes.POST("", h.Quizzes.Create)
	quizzes.GET("", h.Quizzes.ListActive)
	quizzes.DELETE("/:id", h.Quizzes.Deactivate)
	quizzes.POST("/:id/submissions", h.Quizzes.Submit)

	assignments := group.Group("/assignments")
	assignments.POST("", h.Assignments.Create)
	assignments.GET("", h.Assignments.ListActive)
	assignments.DELETE("/:id", h.Assignments.Deactivate)
	assignments.POST("/:id/submissions", h.Assignments.Submit)

	alerts := group.Group("/alerts")
	alerts.GET("", h.Alerts.List)
	alerts.PATCH("/:id/read", h.Alerts.MarkRead)
	alerts.POST("/read-all", h.Alerts.MarkAllRead)

	group.GET("/dashboard/stats", h.Dashboard.Stats)
	group.GET("/reports/risk-roster", h.Reports.RiskRoster)
}
