// Package meta implements effect-size estimation and inverse-variance
// pooling for meta-analysis of treatment/control studies.
//
// References (informal list):
//
//	DerSimonian, R., & Laird, N. (1986). Meta-analysis in clinical trials.
//	    Controlled clinical trials, 7(3), 177-188.
//	Lipsey, M. W., & Wilson, D. B. (2001). Practical meta-analysis.
//	    SAGE publications, Inc.
package meta

import (
	"fmt"
	"math"

	"gometa/domain/core"
)

// Method identifies which estimation procedure produced an outcome's
// effect size and variance.
type Method string

const (
	MethodCustom     Method = "custom"
	MethodLogitPost  Method = "logit_post"
	MethodLogitGains Method = "logit_gains"
	MethodSMDPost    Method = "SMD_post"
	MethodSMDGains   Method = "SMD_gains"
)

// Outcome is one measured or estimated effect from a research study.
// Variance starts at +Inf, meaning "no information", until an estimation
// procedure runs or an estimate is supplied directly.
type Outcome struct {
	ID         core.OutcomeID
	Label      string
	TreatN     int
	ControlN   int
	EffectSize float64
	Variance   float64
	Method     Method
	Note       string
}

// NewOutcome creates an outcome record with no estimate yet.
func NewOutcome(label string, treatN, controlN int) *Outcome {
	return &Outcome{
		ID:       core.NextOutcomeID(),
		Label:    label,
		TreatN:   treatN,
		ControlN: controlN,
		Variance: math.Inf(1),
		Method:   MethodCustom,
	}
}

// NewEstimatedOutcome creates an outcome carrying a previously computed
// effect size and variance.
func NewEstimatedOutcome(label string, treatN, controlN int, effectSize, variance float64) *Outcome {
	o := NewOutcome(label, treatN, controlN)
	o.EffectSize = effectSize
	o.Variance = variance
	return o
}

// SetEstimate stores an effect size and variance on the record.
func (o *Outcome) SetEstimate(effectSize, variance float64) {
	o.EffectSize = effectSize
	o.Variance = variance
}

// Estimate returns the stored effect size and variance.
func (o *Outcome) Estimate() (float64, float64) {
	return o.EffectSize, o.Variance
}

// Combine merges two outcomes of the same label into a single record:
// an inverse-variance-weighted mean effect size, the sum of the two
// variances, and summed sample sizes. A rudimentary way of handling
// dependent outcomes before they enter a pool.
func (o *Outcome) Combine(other *Outcome) (*Outcome, error) {
	if other == nil {
		return nil, fmt.Errorf("%w: cannot combine with nil outcome", core.ErrDomain)
	}
	if o.Label != other.Label {
		return nil, fmt.Errorf("%w: cannot combine outcomes labeled %q and %q",
			core.ErrDomain, o.Label, other.Label)
	}
	if o.Variance <= 0 {
		return nil, core.NewDomainError("variance", o.Variance)
	}
	if other.Variance <= 0 {
		return nil, core.NewDomainError("variance", other.Variance)
	}

	combined := NewOutcome(o.Label, o.TreatN+other.TreatN, o.ControlN+other.ControlN)
	combined.EffectSize = (o.EffectSize*(1/o.Variance) + other.EffectSize*(1/other.Variance)) /
		(o.Variance + other.Variance)
	combined.Variance = o.Variance + other.Variance
	return combined, nil
}

// Equal reports whether two outcomes carry the same statistical content.
// Identifiers are deliberately excluded.
func (o *Outcome) Equal(other *Outcome) bool {
	if other == nil {
		return false
	}
	return o.Label == other.Label &&
		o.EffectSize == other.EffectSize &&
		o.Variance == other.Variance &&
		o.TreatN == other.TreatN &&
		o.ControlN == other.ControlN
}

// Copy returns an independent copy of the record (same ID).
func (o *Outcome) Copy() *Outcome {
	c := *o
	return &c
}

func (o *Outcome) String() string {
	return fmt.Sprintf("id=%d, Outcome=%s, Method=%s, ES=%.4f, Variance=%.4f",
		o.ID, o.Label, o.Method, o.EffectSize, o.Variance)
}

// Estimator computes an (effect size, variance) pair from raw study
// statistics and writes it through to the underlying outcome record.
type Estimator interface {
	Estimate(usePre bool) (effectSize, variance float64, err error)
	Record() *Outcome
}

// smallSampleCorrection is Hedges' finite-sample bias correction applied
// to standardized mean differences.
func smallSampleCorrection(treatN, controlN int) float64 {
	return 1 - 3/float64(4*(treatN+controlN)-9)
}
