package meta

import (
	"math"
	"math/rand"
	"testing"

	"gometa/domain/core"
)

// crimePool builds two studies whose five "crime" outcomes carry known
// effect sizes and variances.
func crimePool(t *testing.T) *StudyPool {
	t.Helper()
	study1 := NewStudy("", "Kris et al 2019",
		NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02),
		NewEstimatedOutcome("crime", 25, 25, 0.17, 0.03),
	)
	study2 := NewStudy("", "Kris et al 2018",
		NewEstimatedOutcome("crime", 25, 25, 0.2, 0.01),
		NewEstimatedOutcome("crime", 25, 25, 0.3, 0.025),
		NewEstimatedOutcome("crime", 25, 25, 0.5, 0.035),
	)
	pool, err := NewStudyPool([]*Study{study1, study2}, "crime")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}
	return pool
}

func TestNewStudyPoolRequiresTwoStudies(t *testing.T) {
	study := NewStudy("", "solo", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	if _, err := NewStudyPool([]*Study{study}, "crime"); !core.IsPrecondition(err) {
		t.Errorf("Expected precondition error, got %v", err)
	}
}

func TestSetOutcome(t *testing.T) {
	study1 := NewStudy("", "Kris et al 2019",
		NewEstimatedOutcome("education", 30, 30, 0.1, 0.02),
		NewEstimatedOutcome("education", 25, 25, 0.1, 0.02),
		NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02),
	)
	study2 := NewStudy("", "Kris et al 2018",
		NewEstimatedOutcome("education", 30, 30, 0.1, 0.02),
		NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02),
		NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02),
		NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02),
	)

	pool, err := NewStudyPool([]*Study{study1, study2}, "education")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}
	if pool.OutcomeLabel != "education" {
		t.Errorf("Expected registered label education, got %q", pool.OutcomeLabel)
	}
	if got := len(pool.EffectSizes()); got != 3 {
		t.Errorf("Expected 3 cached education outcomes, got %d", got)
	}

	if err := pool.SetOutcome("crime"); err != nil {
		t.Fatalf("SetOutcome failed: %v", err)
	}
	if got := len(pool.EffectSizes()); got != 4 {
		t.Errorf("Expected 4 cached crime outcomes, got %d", got)
	}
	if got, want := len(pool.Variances()), len(pool.EffectSizes()); got != want {
		t.Errorf("Cached sequences must stay parallel: %d vs %d", got, want)
	}
}

func TestSetOutcomeLabelNotFound(t *testing.T) {
	pool := crimePool(t)
	err := pool.SetOutcome("housing")
	if !core.IsNotFound(err) {
		t.Fatalf("Expected not-found error, got %v", err)
	}
	// The previous registration survives a failed SetOutcome.
	if pool.OutcomeLabel != "crime" || len(pool.EffectSizes()) != 5 {
		t.Error("Failed SetOutcome must not clobber the registered label")
	}
}

func TestQStatistic(t *testing.T) {
	pool := crimePool(t)

	q, dof, p, err := pool.Q()
	if err != nil {
		t.Fatalf("Q failed: %v", err)
	}
	if math.Abs(q-16.1418558826177) > 1e-9 {
		t.Errorf("Expected Q 16.1418558826177, got %v", q)
	}
	if dof != 4 {
		t.Errorf("Expected 4 degrees of freedom, got %d", dof)
	}
	if math.Abs(p-0.00283460303776) > 1e-8 {
		t.Errorf("Expected p-value 0.00283460303776, got %v", p)
	}
}

func TestTauSquared(t *testing.T) {
	pool := crimePool(t)

	tauSquared, err := pool.TauSquared()
	if err != nil {
		t.Fatalf("TauSquared failed: %v", err)
	}
	if math.Abs(tauSquared-0.064488371103462) > 1e-9 {
		t.Errorf("Expected tau-squared 0.064488371103462, got %v", tauSquared)
	}
}

func TestTauSquaredClampedAtZero(t *testing.T) {
	// Nearly identical small effects: the raw moment estimate goes
	// negative and must clamp to zero.
	study1 := NewStudy("", "a", NewEstimatedOutcome("crime", 25, 25, 0.01, 1.0))
	study2 := NewStudy("", "b",
		NewEstimatedOutcome("crime", 25, 25, 0.01, 1.0),
		NewEstimatedOutcome("crime", 25, 25, 0.01, 1.0),
	)
	pool, err := NewStudyPool([]*Study{study1, study2}, "crime")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}

	tauSquared, err := pool.TauSquared()
	if err != nil {
		t.Fatalf("TauSquared failed: %v", err)
	}
	if tauSquared != 0 {
		t.Errorf("Expected tau-squared clamped to 0, got %v", tauSquared)
	}
}

func TestISquared(t *testing.T) {
	pool := crimePool(t)

	iSquared, err := pool.ISquared()
	if err != nil {
		t.Fatalf("ISquared failed: %v", err)
	}
	q, dof, _, err := pool.Q()
	if err != nil {
		t.Fatalf("Q failed: %v", err)
	}
	want := (q - float64(dof)) / q
	if math.Abs(iSquared-want) > floatTol {
		t.Errorf("Expected I-squared %v, got %v", want, iSquared)
	}
	if iSquared <= 0 || iSquared >= 1 {
		t.Errorf("I-squared for a heterogeneous pool should fall in (0,1), got %v", iSquared)
	}
}

func TestEffectSize(t *testing.T) {
	pool := crimePool(t)

	fixed, err := pool.EffectSize(Fixed)
	if err != nil {
		t.Fatalf("EffectSize(Fixed) failed: %v", err)
	}
	random, err := pool.EffectSize(Random)
	if err != nil {
		t.Fatalf("EffectSize(Random) failed: %v", err)
	}
	if math.Abs(fixed-0.226086956521739) > 1e-9 {
		t.Errorf("Expected fixed-effects effect size 0.226086956521739, got %v", fixed)
	}
	if math.Abs(random-0.246115055719316) > 1e-9 {
		t.Errorf("Expected random-effects effect size 0.246115055719316, got %v", random)
	}
}

func TestVariance(t *testing.T) {
	pool := crimePool(t)

	fixed, err := pool.Variance(Fixed)
	if err != nil {
		t.Fatalf("Variance(Fixed) failed: %v", err)
	}
	random, err := pool.Variance(Random)
	if err != nil {
		t.Fatalf("Variance(Random) failed: %v", err)
	}
	if math.Abs(fixed-0.003969754253308) > 1e-9 {
		t.Errorf("Expected fixed-effects variance 0.003969754253308, got %v", fixed)
	}
	if math.Abs(random-0.017522267928502) > 1e-9 {
		t.Errorf("Expected random-effects variance 0.017522267928502, got %v", random)
	}
}

func TestMetaAnalysis(t *testing.T) {
	pool := crimePool(t)

	fixedES, fixedVar, err := pool.MetaAnalysis(Fixed)
	if err != nil {
		t.Fatalf("MetaAnalysis(Fixed) failed: %v", err)
	}
	randomES, randomVar, err := pool.MetaAnalysis(Random)
	if err != nil {
		t.Fatalf("MetaAnalysis(Random) failed: %v", err)
	}
	autoES, autoVar, err := pool.MetaAnalysis(Auto)
	if err != nil {
		t.Fatalf("MetaAnalysis(Auto) failed: %v", err)
	}

	wantFixedES, _ := pool.EffectSize(Fixed)
	wantRandomES, _ := pool.EffectSize(Random)
	if math.Abs(fixedES-wantFixedES) > floatTol || math.Abs(randomES-wantRandomES) > floatTol {
		t.Error("MetaAnalysis must match EffectSize for the same method")
	}

	// This pool is heterogeneous (p ~ 0.0028), so Auto selects random effects.
	resolved, err := pool.ResolveMethod(Auto)
	if err != nil {
		t.Fatalf("ResolveMethod failed: %v", err)
	}
	if resolved != Random {
		t.Fatalf("Expected Auto to resolve to random effects, got %q", resolved)
	}
	if autoES != randomES || autoVar != randomVar {
		t.Error("Auto must produce the same numbers as the method it resolves to")
	}
	if fixedVar == randomVar {
		t.Error("Fixed and random variances should differ on a heterogeneous pool")
	}
}

func TestMetaAnalysisAutoHomogeneous(t *testing.T) {
	study1 := NewStudy("", "a", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	study2 := NewStudy("", "b", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	pool, err := NewStudyPool([]*Study{study1, study2}, "crime")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}

	resolved, err := pool.ResolveMethod(Auto)
	if err != nil {
		t.Fatalf("ResolveMethod failed: %v", err)
	}
	if resolved != Fixed {
		t.Errorf("Expected Auto to resolve to fixed effects on homogeneous data, got %q", resolved)
	}
}

func TestMetaAnalysisUnknownMethod(t *testing.T) {
	pool := crimePool(t)
	if _, _, err := pool.MetaAnalysis(PoolMethod("bayesian")); !core.IsPrecondition(err) {
		t.Errorf("Expected precondition error for unknown method, got %v", err)
	}
}

func TestFixedEffectsExample(t *testing.T) {
	// Two studies, one crime outcome each: weights 50 and 100.
	study1 := NewStudy("", "a", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	study2 := NewStudy("", "b", NewEstimatedOutcome("crime", 25, 25, 0.2, 0.01))
	pool, err := NewStudyPool([]*Study{study1, study2}, "crime")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}

	es, variance, err := pool.MetaAnalysis(Fixed)
	if err != nil {
		t.Fatalf("MetaAnalysis failed: %v", err)
	}
	if math.Abs(es-(0.1*50+0.2*100)/150) > floatTol {
		t.Errorf("Expected pooled effect size %v, got %v", (0.1*50+0.2*100)/150, es)
	}
	if math.Abs(variance-1.0/150) > floatTol {
		t.Errorf("Expected pooled variance %v, got %v", 1.0/150, variance)
	}
}

func TestStatisticsRequireRegisteredLabel(t *testing.T) {
	study1 := NewStudy("", "a", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	study2 := NewStudy("", "b", NewEstimatedOutcome("crime", 25, 25, 0.2, 0.01))
	pool, err := NewStudyPool([]*Study{study1, study2}, "")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}

	if _, err := pool.EffectSize(Fixed); !core.IsPrecondition(err) {
		t.Errorf("Expected precondition error from EffectSize, got %v", err)
	}
	if _, _, _, err := pool.Q(); !core.IsPrecondition(err) {
		t.Errorf("Expected precondition error from Q, got %v", err)
	}
	if _, _, err := pool.MetaAnalysis(Auto); !core.IsPrecondition(err) {
		t.Errorf("Expected precondition error from MetaAnalysis, got %v", err)
	}
}

func TestNonPositiveVarianceRejected(t *testing.T) {
	study1 := NewStudy("", "a", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	study2 := NewStudy("", "b", NewEstimatedOutcome("crime", 25, 25, 0.2, 0))
	pool, err := NewStudyPool([]*Study{study1, study2}, "crime")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}

	if _, err := pool.EffectSize(Fixed); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for zero variance, got %v", err)
	}
	if _, err := pool.Variance(Random); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for zero variance, got %v", err)
	}
}

func TestFixedVarianceNeverExceedsIndividual(t *testing.T) {
	// Inverse-variance pooling can only reduce variance.
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		k := 2 + rng.Intn(8)
		studies := make([]*Study, 0, k)
		minVariance := math.Inf(1)
		for i := 0; i < k; i++ {
			v := 0.001 + rng.Float64()
			if v < minVariance {
				minVariance = v
			}
			studies = append(studies, NewStudy("", "s",
				NewEstimatedOutcome("crime", 25, 25, rng.NormFloat64(), v)))
		}
		pool, err := NewStudyPool(studies, "crime")
		if err != nil {
			t.Fatalf("NewStudyPool failed: %v", err)
		}
		pooled, err := pool.Variance(Fixed)
		if err != nil {
			t.Fatalf("Variance failed: %v", err)
		}
		if pooled > minVariance+floatTol {
			t.Fatalf("Pooled variance %v exceeds smallest individual variance %v", pooled, minVariance)
		}
	}
}

func TestRemoveStudy(t *testing.T) {
	study1 := NewStudy("", "a", NewEstimatedOutcome("crime", 25, 25, 0.1, 0.02))
	study2 := NewStudy("", "b", NewEstimatedOutcome("crime", 25, 25, 0.2, 0.01))
	study3 := NewStudy("", "c", NewEstimatedOutcome("crime", 25, 25, 0.3, 0.025))
	pool, err := NewStudyPool([]*Study{study1, study2, study3}, "crime")
	if err != nil {
		t.Fatalf("NewStudyPool failed: %v", err)
	}

	removed, err := pool.RemoveStudy("b")
	if err != nil {
		t.Fatalf("RemoveStudy failed: %v", err)
	}
	if len(removed.Studies) != 2 {
		t.Errorf("Expected 2 studies after removal, got %d", len(removed.Studies))
	}
	if got := len(removed.EffectSizes()); got != 2 {
		t.Errorf("Expected label re-registered over 2 outcomes, got %d", got)
	}

	// The original pool and its cache are untouched.
	if len(pool.Studies) != 3 || len(pool.EffectSizes()) != 3 {
		t.Error("RemoveStudy must not mutate the original pool")
	}
}

func TestRemoveStudyNotFound(t *testing.T) {
	pool := crimePool(t)
	if _, err := pool.RemoveStudy("nope"); !core.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
	if len(pool.Studies) != 2 {
		t.Error("Failed RemoveStudy must not mutate the original pool")
	}
}

func TestPoolCopyIsDeep(t *testing.T) {
	pool := crimePool(t)
	cp := pool.Copy()

	cp.Studies[0].Outcomes[0].SetEstimate(9, 9)
	if err := cp.SetOutcome("crime"); err != nil {
		t.Fatalf("SetOutcome failed: %v", err)
	}

	if pool.Studies[0].Outcomes[0].EffectSize != 0.1 {
		t.Error("Mutating a copied pool's outcomes must not affect the original")
	}
	if pool.EffectSizes()[0] != 0.1 {
		t.Error("Re-registering on a copy must not affect the original cache")
	}
}

func TestCacheStaleUntilReRegistered(t *testing.T) {
	pool := crimePool(t)
	before := len(pool.EffectSizes())

	pool.AppendStudy(NewStudy("", "d", NewEstimatedOutcome("crime", 25, 25, 0.4, 0.02)))
	if got := len(pool.EffectSizes()); got != before {
		t.Fatalf("Cache must not change before SetOutcome, got %d", got)
	}

	if err := pool.SetOutcome("crime"); err != nil {
		t.Fatalf("SetOutcome failed: %v", err)
	}
	if got := len(pool.EffectSizes()); got != before+1 {
		t.Errorf("Expected %d cached outcomes after re-registering, got %d", before+1, got)
	}
}
