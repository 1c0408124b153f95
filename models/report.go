package models

import (
	"time"

	"gometa/domain/meta"
)

// AnalysisReport is the result of pooling one outcome label across a
// study pool.
type AnalysisReport struct {
	ID         string          `db:"id" json:"id"`
	Label      string          `db:"label" json:"label"`
	Requested  meta.PoolMethod `db:"requested_method" json:"requested_method"`
	Method     meta.PoolMethod `db:"method" json:"method"` // method actually applied (fixed or random)
	EffectSize float64         `db:"effect_size" json:"effect_size"`
	Variance   float64         `db:"variance" json:"variance"`
	Q          float64         `db:"q_statistic" json:"q_statistic"`
	DOF        int             `db:"dof" json:"dof"`
	PValue     float64         `db:"p_value" json:"p_value"`
	TauSquared float64         `db:"tau_squared" json:"tau_squared"`
	ISquared   float64         `db:"i_squared" json:"i_squared"`
	Outcomes   int             `db:"outcome_count" json:"outcome_count"`
	Studies    int             `db:"study_count" json:"study_count"`
	Summary    EffectSummary   `db:"-" json:"summary"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// EffectSummary describes the distribution of the individual effect sizes
// that entered a pooled estimate.
type EffectSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}
