package dto

// ReportFile is a rendered export ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
