package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
	"github.com/noah-isme/sma-risk-monitor/pkg/export"
)

// Supported roster formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

var rosterHeaders = []string{"student_id", "name", "email", "risk_level", "score", "last_updated"}

type rosterSource interface {
	ListByRisk(ctx context.Context, risk models.RiskLevel) ([]models.Student, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ReportService renders downloadable risk rosters.
type ReportService struct {
	students  rosterSource
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService with CSV and PDF renderers.
func NewReportService(students rosterSource, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		students: students,
		renderers: map[string]datasetRenderer{
			ReportFormatCSV: export.NewCSVExporter(),
			ReportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// ExportRiskRoster renders every student, weakest score first, optionally limited to one risk level.
func (s *ReportService) ExportRiskRoster(ctx context.Context, format string, risk models.RiskLevel) (*dto.ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if risk != "" && !risk.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid risk level")
	}

	students, err := s.students.ListByRisk(ctx, risk)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	title := "Risk roster"
	if risk != "" {
		title = fmt.Sprintf("Risk roster (%s)", risk)
	}
	dataset := export.Dataset{Title: title, Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(students))}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_id":   st.StudentID,
			"name":         st.Name,
			"email":        st.Email,
			"risk_level":   string(st.CurrentRiskLevel),
			"score":        fmt.Sprintf("%.1f", st.PerformanceScore),
			"last_updated": st.LastUpdated.UTC().Format(time.RFC3339),
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}
	filename := fmt.Sprintf("risk-roster-%s.%s", s.now().UTC().Format("20060102"), renderer.Extension())
	s.logger.Info("risk roster exported", zap.String("format", format), zap.Int("rows", len(students)))
	return &dto.ReportFile{Filename: filename, ContentType: renderer.ContentType(), Body: body}, nil
}
