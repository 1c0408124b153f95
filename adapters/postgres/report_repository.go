package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"gometa/models"
	"gometa/ports"
)

// ReportRepositoryImpl implements ReportRepository for PostgreSQL
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

// SaveReport stores one pooled analysis result
func (r *ReportRepositoryImpl) SaveReport(ctx context.Context, report *models.AnalysisReport) error {
	summaryJSON, _ := json.Marshal(report.Summary)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_reports (
			id, label, requested_method, method,
			effect_size, variance, q_statistic, dof, p_value,
			tau_squared, i_squared, outcome_count, study_count,
			summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		report.ID, report.Label, string(report.Requested), string(report.Method),
		report.EffectSize, report.Variance, report.Q, report.DOF, report.PValue,
		report.TauSquared, report.ISquared, report.Outcomes, report.Studies,
		summaryJSON, report.CreatedAt)
	return err
}

// ListReports returns stored reports for a label, newest first
func (r *ReportRepositoryImpl) ListReports(ctx context.Context, label string) ([]*models.AnalysisReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, requested_method, method,
			   effect_size, variance, q_statistic, dof, p_value,
			   tau_squared, i_squared, outcome_count, study_count,
			   summary, created_at
		FROM analysis_reports
		WHERE label = $1
		ORDER BY created_at DESC`, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.AnalysisReport
	for rows.Next() {
		var report models.AnalysisReport
		var summaryJSON []byte

		err := rows.Scan(
			&report.ID, &report.Label, &report.Requested, &report.Method,
			&report.EffectSize, &report.Variance, &report.Q, &report.DOF, &report.PValue,
			&report.TauSquared, &report.ISquared, &report.Outcomes, &report.Studies,
			&summaryJSON, &report.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(summaryJSON) > 0 {
			json.Unmarshal(summaryJSON, &report.Summary)
		}

		reports = append(reports, &report)
	}
	return reports, rows.Err()
}
