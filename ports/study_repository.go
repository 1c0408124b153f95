package ports

import (
	"context"

	"gometa/domain/meta"
	"gometa/models"
)

// StudyRepository defines the interface for study persistence
type StudyRepository interface {
	// SaveStudy stores a study and its outcomes, replacing any prior
	// version stored under the same citation
	SaveStudy(ctx context.Context, study *meta.Study) error

	// GetStudy retrieves a study by citation
	GetStudy(ctx context.Context, citation string) (*meta.Study, error)

	// ListStudies returns all stored studies with their outcomes
	ListStudies(ctx context.Context) ([]*meta.Study, error)

	// DeleteStudy removes a study by citation
	DeleteStudy(ctx context.Context, citation string) error
}

// ReportRepository defines the interface for analysis report persistence
type ReportRepository interface {
	// SaveReport stores one pooled analysis result
	SaveReport(ctx context.Context, report *models.AnalysisReport) error

	// ListReports returns stored reports for a label, newest first
	ListReports(ctx context.Context, label string) ([]*models.AnalysisReport, error)
}
