package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/ports"
)

// Connect opens a PostgreSQL connection pool and verifies it.
func Connect(databaseURL string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS studies (
	citation TEXT PRIMARY KEY,
	note     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outcomes (
	id          BIGINT NOT NULL,
	citation    TEXT NOT NULL REFERENCES studies(citation) ON DELETE CASCADE,
	position    INT NOT NULL,
	label       TEXT NOT NULL,
	treat_n     INT NOT NULL,
	control_n   INT NOT NULL,
	effect_size DOUBLE PRECISION NOT NULL,
	variance    DOUBLE PRECISION,
	method      TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (citation, position)
);

CREATE TABLE IF NOT EXISTS analysis_reports (
	id               TEXT PRIMARY KEY,
	label            TEXT NOT NULL,
	requested_method TEXT NOT NULL,
	method           TEXT NOT NULL,
	effect_size      DOUBLE PRECISION NOT NULL,
	variance         DOUBLE PRECISION NOT NULL,
	q_statistic      DOUBLE PRECISION NOT NULL,
	dof              INT NOT NULL,
	p_value          DOUBLE PRECISION NOT NULL,
	tau_squared      DOUBLE PRECISION NOT NULL,
	i_squared        DOUBLE PRECISION NOT NULL,
	outcome_count    INT NOT NULL,
	study_count      INT NOT NULL,
	summary          JSONB,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_reports_label
	ON analysis_reports (label, created_at DESC);
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// StudyRepositoryImpl implements StudyRepository for PostgreSQL
type StudyRepositoryImpl struct {
	db *sqlx.DB
}

// NewStudyRepository creates a new PostgreSQL study repository
func NewStudyRepository(db *sqlx.DB) ports.StudyRepository {
	return &StudyRepositoryImpl{db: db}
}

// SaveStudy stores a study and its outcomes, replacing any prior version
// stored under the same citation.
func (r *StudyRepositoryImpl) SaveStudy(ctx context.Context, study *meta.Study) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO studies (citation, note)
		VALUES ($1, $2)
		ON CONFLICT (citation) DO UPDATE SET note = EXCLUDED.note`,
		study.Citation, study.Note)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM outcomes WHERE citation = $1`, study.Citation)
	if err != nil {
		return err
	}

	for i, o := range study.Outcomes {
		// A variance of +Inf means "no estimate yet"; it round-trips as NULL.
		var variance *float64
		if !math.IsInf(o.Variance, 1) {
			v := o.Variance
			variance = &v
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes (id, citation, position, label, treat_n, control_n,
				effect_size, variance, method, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			int64(o.ID), study.Citation, i, o.Label, o.TreatN, o.ControlN,
			o.EffectSize, variance, string(o.Method), o.Note)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStudy retrieves a study by citation
func (r *StudyRepositoryImpl) GetStudy(ctx context.Context, citation string) (*meta.Study, error) {
	var note string
	err := r.db.QueryRowContext(ctx,
		`SELECT note FROM studies WHERE citation = $1`, citation).Scan(&note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: citation %q", core.ErrStudyNotFound, citation)
	}
	if err != nil {
		return nil, err
	}

	outcomes, err := r.loadOutcomes(ctx, citation)
	if err != nil {
		return nil, err
	}
	return meta.NewStudy(note, citation, outcomes...), nil
}

// ListStudies returns all stored studies with their outcomes
func (r *StudyRepositoryImpl) ListStudies(ctx context.Context) ([]*meta.Study, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT citation, note FROM studies ORDER BY citation ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var studies []*meta.Study
	for rows.Next() {
		var citation, note string
		if err := rows.Scan(&citation, &note); err != nil {
			return nil, err
		}
		studies = append(studies, meta.NewStudy(note, citation))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, study := range studies {
		outcomes, err := r.loadOutcomes(ctx, study.Citation)
		if err != nil {
			return nil, err
		}
		study.Outcomes = outcomes
	}
	return studies, nil
}

// DeleteStudy removes a study by citation
func (r *StudyRepositoryImpl) DeleteStudy(ctx context.Context, citation string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM studies WHERE citation = $1`, citation)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: citation %q", core.ErrStudyNotFound, citation)
	}
	return nil
}

func (r *StudyRepositoryImpl) loadOutcomes(ctx context.Context, citation string) ([]*meta.Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, treat_n, control_n, effect_size, variance, method, note
		FROM outcomes
		WHERE citation = $1
		ORDER BY position ASC`, citation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*meta.Outcome
	for rows.Next() {
		var (
			id       int64
			o        meta.Outcome
			variance sql.NullFloat64
			method   string
		)
		err := rows.Scan(&id, &o.Label, &o.TreatN, &o.ControlN,
			&o.EffectSize, &variance, &method, &o.Note)
		if err != nil {
			return nil, err
		}
		o.ID = core.OutcomeID(id)
		o.Method = meta.Method(method)
		if variance.Valid {
			o.Variance = variance.Float64
		} else {
			o.Variance = math.Inf(1)
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}
