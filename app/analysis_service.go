package app

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/models"
)

// AnalysisService runs meta-analyses over a set of studies and packages
// the results as reports.
type AnalysisService struct{}

// NewAnalysisService creates an analysis service
func NewAnalysisService() *AnalysisService {
	return &AnalysisService{}
}

// Run pools one outcome label across the given studies and returns the
// full report: pooled estimate, heterogeneity statistics and a summary of
// the individual effect sizes.
func (s *AnalysisService) Run(ctx context.Context, studies []*meta.Study, label string, method meta.PoolMethod) (*models.AnalysisReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool, err := meta.NewStudyPool(studies, label)
	if err != nil {
		return nil, fmt.Errorf("pooling label %q: %w", label, err)
	}

	q, dof, pValue, err := pool.Q()
	if err != nil {
		return nil, fmt.Errorf("heterogeneity test for %q: %w", label, err)
	}
	tauSquared, err := pool.TauSquared()
	if err != nil {
		return nil, fmt.Errorf("tau-squared for %q: %w", label, err)
	}
	iSquared, err := pool.ISquared()
	if err != nil {
		return nil, fmt.Errorf("i-squared for %q: %w", label, err)
	}

	resolved, err := pool.ResolveMethod(method)
	if err != nil {
		return nil, fmt.Errorf("resolving method for %q: %w", label, err)
	}
	effectSize, variance, err := pool.MetaAnalysis(resolved)
	if err != nil {
		return nil, fmt.Errorf("meta-analysis for %q: %w", label, err)
	}

	effectSizes := pool.EffectSizes()
	summary, err := summarize(effectSizes)
	if err != nil {
		return nil, fmt.Errorf("summarizing effect sizes for %q: %w", label, err)
	}

	return &models.AnalysisReport{
		ID:         core.NewID().String(),
		Label:      label,
		Requested:  method,
		Method:     resolved,
		EffectSize: effectSize,
		Variance:   variance,
		Q:          q,
		DOF:        dof,
		PValue:     pValue,
		TauSquared: tauSquared,
		ISquared:   iSquared,
		Outcomes:   len(effectSizes),
		Studies:    len(studies),
		Summary:    summary,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RunAll pools every given label concurrently. Reports come back in label
// order; the first failing label aborts the batch.
func (s *AnalysisService) RunAll(ctx context.Context, studies []*meta.Study, labels []string, method meta.PoolMethod) ([]*models.AnalysisReport, error) {
	reports := make([]*models.AnalysisReport, len(labels))

	g, ctx := errgroup.WithContext(ctx)
	for i, label := range labels {
		i, label := i, label
		g.Go(func() error {
			report, err := s.Run(ctx, studies, label, method)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Labels returns the distinct outcome labels across the studies, in first
// encounter order.
func Labels(studies []*meta.Study) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, study := range studies {
		for _, o := range study.Outcomes {
			if !seen[o.Label] {
				seen[o.Label] = true
				labels = append(labels, o.Label)
			}
		}
	}
	return labels
}

func summarize(effectSizes []float64) (models.EffectSummary, error) {
	mean, err := stats.Mean(effectSizes)
	if err != nil {
		return models.EffectSummary{}, err
	}
	median, err := stats.Median(effectSizes)
	if err != nil {
		return models.EffectSummary{}, err
	}
	min, err := stats.Min(effectSizes)
	if err != nil {
		return models.EffectSummary{}, err
	}
	max, err := stats.Max(effectSizes)
	if err != nil {
		return models.EffectSummary{}, err
	}
	return models.EffectSummary{Mean: mean, Median: median, Min: min, Max: max}, nil
}
