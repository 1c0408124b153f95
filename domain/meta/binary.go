package meta

import (
	"fmt"
	"math"

	"gometa/domain/core"
)

// logisticSD is the standard deviation of the standard logistic
// distribution. Dividing a logit by it yields an approximation of a
// standardized mean difference.
var logisticSD = math.Pi / math.Sqrt(3)

// BinaryOutcome derives an effect size from treatment/control success
// proportions through a logit transform. Pre-period proportions are
// optional; when present they enable gains-score estimation.
type BinaryOutcome struct {
	*Outcome

	TreatPost   float64
	ControlPost float64
	TreatPre    *float64
	ControlPre  *float64
}

// NewBinaryOutcome creates a binary outcome from post-period success
// proportions in [0,1] (exclusive; 0 and 1 are rejected at estimation).
func NewBinaryOutcome(label string, treatN, controlN int, treatPost, controlPost float64) *BinaryOutcome {
	return &BinaryOutcome{
		Outcome:     NewOutcome(label, treatN, controlN),
		TreatPost:   treatPost,
		ControlPost: controlPost,
	}
}

// SetPrePeriod attaches pre-period proportions for gains-score estimation.
func (b *BinaryOutcome) SetPrePeriod(treatPre, controlPre float64) {
	b.TreatPre = &treatPre
	b.ControlPre = &controlPre
}

// PostPeriod returns the post-period proportions.
func (b *BinaryOutcome) PostPeriod() (float64, float64) {
	return b.TreatPost, b.ControlPost
}

// Record returns the underlying outcome record.
func (b *BinaryOutcome) Record() *Outcome {
	return b.Outcome
}

// Estimate computes the effect size and variance and stores them on the
// record. With usePre the pre-period is netted out as a gains score: the
// pre-period effect size is subtracted and its variance added. Missing
// pre-period proportions are an error, never a silent post-only fallback.
func (b *BinaryOutcome) Estimate(usePre bool) (float64, float64, error) {
	logit, err := b.MakeLogit(b.TreatPost, b.ControlPost)
	if err != nil {
		return 0, 0, err
	}
	effectSize := b.TransformLogit(logit)
	variance, err := b.logitVariance(b.TreatPost, b.ControlPost)
	if err != nil {
		return 0, 0, err
	}
	method := MethodLogitPost

	if usePre {
		if b.TreatPre == nil || b.ControlPre == nil {
			return 0, 0, fmt.Errorf("%w: binary outcome id=%d", core.ErrMissingData, b.ID)
		}
		preLogit, err := b.MakeLogit(*b.TreatPre, *b.ControlPre)
		if err != nil {
			return 0, 0, err
		}
		preVariance, err := b.logitVariance(*b.TreatPre, *b.ControlPre)
		if err != nil {
			return 0, 0, err
		}
		effectSize -= b.TransformLogit(preLogit)
		variance += preVariance
		method = MethodLogitGains
	}

	b.Method = method
	b.SetEstimate(effectSize, variance)
	return effectSize, variance, nil
}

// MakeLogit calculates the log odds of the treatment group's successes
// against the control group's. Proportions of exactly 0 or 1 are outside
// the transform's domain.
func (b *BinaryOutcome) MakeLogit(treatP, controlP float64) (float64, error) {
	if err := validateProportion(treatP); err != nil {
		return 0, err
	}
	if err := validateProportion(controlP); err != nil {
		return 0, err
	}
	oddsNumerator := treatP * (1 - controlP)
	oddsDenominator := controlP * (1 - treatP)
	return math.Log(oddsNumerator / oddsDenominator), nil
}

// TransformLogit converts a logit to a standardized-mean-difference
// approximation: divide by the logistic SD, then apply the finite-sample
// bias correction.
func (b *BinaryOutcome) TransformLogit(logit float64) float64 {
	d := logit / logisticSD
	return d * smallSampleCorrection(b.TreatN, b.ControlN)
}

// logitVariance is the sampling variance of the logit-based effect size.
func (b *BinaryOutcome) logitVariance(treatP, controlP float64) (float64, error) {
	if err := validateProportion(treatP); err != nil {
		return 0, err
	}
	if err := validateProportion(controlP); err != nil {
		return 0, err
	}
	varianceLogit := 1/treatP + 1/(1-treatP) + 1/controlP + 1/(1-controlP)
	return varianceLogit / (math.Pi * math.Pi / 3), nil
}

func validateProportion(p float64) error {
	if p <= 0 || p >= 1 {
		return core.NewDomainError("proportion", p)
	}
	return nil
}
