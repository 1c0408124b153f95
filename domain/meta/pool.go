package meta

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"gometa/domain/core"
)

// PoolMethod selects the pooling model for a meta-analysis.
type PoolMethod string

const (
	// Fixed assumes one true population effect size and ignores
	// between-study variance.
	Fixed PoolMethod = "fixed"
	// Random adds the estimated between-study variance (tau-squared)
	// to each outcome's variance.
	Random PoolMethod = "random"
	// Auto picks Random when the Q statistic is significant at
	// HeterogeneityAlpha, otherwise Fixed.
	Auto PoolMethod = "auto"
)

// HeterogeneityAlpha is the significance threshold Auto uses to decide
// between fixed and random effects.
const HeterogeneityAlpha = 0.05

// StudyPool pools outcomes sharing a label across two or more studies.
//
// Registering a label caches the matching effect sizes and variances as two
// parallel slices (index i in both refers to the same outcome); every
// statistic operates on that cache. SetOutcome rebuilds the cache in full;
// after any study or outcome mutation the cache is stale until the label
// is registered again.
type StudyPool struct {
	Studies      []*Study
	OutcomeLabel string

	effectSizes []float64
	variances   []float64
}

// NewStudyPool creates a pool over at least two studies. An empty label
// leaves the pool unregistered; call SetOutcome before requesting
// statistics.
func NewStudyPool(studies []*Study, label string) (*StudyPool, error) {
	if len(studies) < 2 {
		return nil, fmt.Errorf("%w: study pool needs at least 2 studies, got %d",
			core.ErrPrecondition, len(studies))
	}
	p := &StudyPool{Studies: studies}
	if label != "" {
		if err := p.SetOutcome(label); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SetOutcome registers an outcome label for meta-analysis. Only one label
// is registered at a time; every outcome across every study is scanned and
// matching effect sizes and variances are cached.
func (p *StudyPool) SetOutcome(label string) error {
	var effectSizes, variances []float64
	for _, study := range p.Studies {
		for _, o := range study.Outcomes {
			if o.Label == label {
				effectSizes = append(effectSizes, o.EffectSize)
				variances = append(variances, o.Variance)
			}
		}
	}
	if len(effectSizes) == 0 {
		return fmt.Errorf("%w: %q", core.ErrLabelNotFound, label)
	}
	p.OutcomeLabel = label
	p.effectSizes = effectSizes
	p.variances = variances
	return nil
}

// EffectSizes returns a copy of the cached effect sizes for the
// registered label.
func (p *StudyPool) EffectSizes() []float64 {
	return append([]float64(nil), p.effectSizes...)
}

// Variances returns a copy of the cached variances for the registered label.
func (p *StudyPool) Variances() []float64 {
	return append([]float64(nil), p.variances...)
}

// AppendStudy adds a study to the pool. The statistic cache is stale until
// SetOutcome runs again.
func (p *StudyPool) AppendStudy(study *Study) {
	p.Studies = append(p.Studies, study)
}

// RemoveStudy returns a new pool without the cited study, with the current
// label re-registered over the remaining studies. The receiver is never
// modified; the remaining studies are shared.
func (p *StudyPool) RemoveStudy(citation string) (*StudyPool, error) {
	for i, s := range p.Studies {
		if s.Citation == citation {
			rest := make([]*Study, 0, len(p.Studies)-1)
			rest = append(rest, p.Studies[:i]...)
			rest = append(rest, p.Studies[i+1:]...)
			return NewStudyPool(rest, p.OutcomeLabel)
		}
	}
	return nil, fmt.Errorf("%w: citation %q", core.ErrStudyNotFound, citation)
}

// Copy returns a fully independent deep copy of the pool.
func (p *StudyPool) Copy() *StudyPool {
	studies := make([]*Study, len(p.Studies))
	for i, s := range p.Studies {
		studies[i] = s.Copy()
	}
	return &StudyPool{
		Studies:      studies,
		OutcomeLabel: p.OutcomeLabel,
		effectSizes:  append([]float64(nil), p.effectSizes...),
		variances:    append([]float64(nil), p.variances...),
	}
}

// MetaAnalysis performs the meta-analysis: the pooled effect size and its
// variance, both computed with the resolved method.
func (p *StudyPool) MetaAnalysis(method PoolMethod) (float64, float64, error) {
	resolved, err := p.ResolveMethod(method)
	if err != nil {
		return 0, 0, err
	}
	effectSize, err := p.EffectSize(resolved)
	if err != nil {
		return 0, 0, err
	}
	variance, err := p.Variance(resolved)
	if err != nil {
		return 0, 0, err
	}
	return effectSize, variance, nil
}

// ResolveMethod maps Auto onto Fixed or Random by testing the Q statistic
// for significance; Fixed and Random pass through.
func (p *StudyPool) ResolveMethod(method PoolMethod) (PoolMethod, error) {
	switch method {
	case Fixed, Random:
		return method, nil
	case Auto:
		_, _, pValue, err := p.Q()
		if err != nil {
			return "", err
		}
		if pValue < HeterogeneityAlpha {
			return Random, nil
		}
		return Fixed, nil
	default:
		return "", fmt.Errorf("%w: unknown pooling method %q", core.ErrPrecondition, method)
	}
}

// EffectSize calculates the inverse-variance-weighted mean effect size.
func (p *StudyPool) EffectSize(method PoolMethod) (float64, error) {
	weights, err := p.weights(method)
	if err != nil {
		return 0, err
	}
	var sumWD, sumW float64
	for i, w := range weights {
		sumWD += w * p.effectSizes[i]
		sumW += w
	}
	return sumWD / sumW, nil
}

// Variance calculates the variance of the weighted mean effect size.
func (p *StudyPool) Variance(method PoolMethod) (float64, error) {
	weights, err := p.weights(method)
	if err != nil {
		return 0, err
	}
	var sumW float64
	for _, w := range weights {
		sumW += w
	}
	return 1 / sumW, nil
}

// Q calculates the heterogeneity test statistic, its degrees of freedom
// and the p-value of a one-sided chi-square test. Q is asymptotically
// chi-square with k-1 degrees of freedom under homogeneity.
func (p *StudyPool) Q() (float64, int, float64, error) {
	weights, err := p.weights(Fixed)
	if err != nil {
		return 0, 0, 0, err
	}
	var sumWSq, sumW float64
	for i, w := range weights {
		es := p.effectSizes[i]
		sumWSq += w * es * es
		sumW += w
	}
	q := sumWSq - sumWSq/sumW
	dof := len(p.effectSizes) - 1

	// Chi-square with zero degrees of freedom is a point mass at zero.
	if dof == 0 {
		if q > 0 {
			return q, dof, 0, nil
		}
		return q, dof, 1, nil
	}

	chiDist := distuv.ChiSquared{K: float64(dof)}
	pValue := 1 - chiDist.CDF(q)
	return q, dof, pValue, nil
}

// TauSquared estimates the between-study variance with the
// DerSimonian-Laird moment-based procedure, clamped at zero.
func (p *StudyPool) TauSquared() (float64, error) {
	q, dof, _, err := p.Q()
	if err != nil {
		return 0, err
	}
	weights, err := p.weights(Fixed)
	if err != nil {
		return 0, err
	}
	var sumW, sumWSquare float64
	for _, w := range weights {
		sumW += w
		sumWSquare += w * w
	}
	tauSquared := (q - float64(dof)) / (sumW - sumWSquare/sumW)
	if tauSquared <= 0 {
		return 0, nil
	}
	return tauSquared, nil
}

// ISquared estimates the proportion of total variance attributable to
// between-study heterogeneity rather than sampling error.
func (p *StudyPool) ISquared() (float64, error) {
	q, dof, _, err := p.Q()
	if err != nil {
		return 0, err
	}
	if q <= 0 {
		return 0, core.NewDomainError("Q statistic", q)
	}
	return (q - float64(dof)) / q, nil
}

// weights returns the inverse-variance weights for the registered label:
// 1/v for fixed effects, 1/(v+tau^2) for random effects. A cached variance
// of zero or below fails at the point of division rather than propagating
// inf or NaN into aggregate statistics.
func (p *StudyPool) weights(method PoolMethod) ([]float64, error) {
	if p.OutcomeLabel == "" || len(p.effectSizes) == 0 {
		return nil, fmt.Errorf("%w: no outcome label registered; call SetOutcome first",
			core.ErrPrecondition)
	}

	var tauSquared float64
	if method == Random {
		var err error
		tauSquared, err = p.TauSquared()
		if err != nil {
			return nil, err
		}
	}

	weights := make([]float64, len(p.variances))
	for i, v := range p.variances {
		if v <= 0 {
			return nil, core.NewDomainError(
				fmt.Sprintf("variance of outcome %d with label %q", i, p.OutcomeLabel), v)
		}
		weights[i] = 1 / (v + tauSquared)
	}
	return weights, nil
}

func (p *StudyPool) String() string {
	return fmt.Sprintf("StudyPool(studies=%d, label=%q, outcomes=%d)",
		len(p.Studies), p.OutcomeLabel, len(p.effectSizes))
}
