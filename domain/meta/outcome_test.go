package meta

import (
	"fmt"
	"math"
	"testing"

	"gometa/domain/core"
)

func TestNewOutcomeAssignsIncreasingIDs(t *testing.T) {
	outcome1 := NewOutcome("education", 30, 30)
	outcome2 := NewOutcome("education", 20, 25)
	outcome3 := NewOutcome("education", 40, 30)

	if outcome1.ID == outcome2.ID || outcome2.ID == outcome3.ID {
		t.Fatal("Outcome IDs must be unique")
	}
	if !(outcome1.ID < outcome2.ID && outcome2.ID < outcome3.ID) {
		t.Errorf("Outcome IDs must increase: got %d, %d, %d", outcome1.ID, outcome2.ID, outcome3.ID)
	}
}

func TestNewOutcomeDefaults(t *testing.T) {
	o := NewOutcome("education", 30, 25)
	if o.Method != MethodCustom {
		t.Errorf("Expected method %q, got %q", MethodCustom, o.Method)
	}
	if !math.IsInf(o.Variance, 1) {
		t.Errorf("Variance must default to +Inf, got %v", o.Variance)
	}
	if o.EffectSize != 0 {
		t.Errorf("EffectSize must default to 0, got %v", o.EffectSize)
	}
}

func TestOutcomeString(t *testing.T) {
	o := NewEstimatedOutcome("education", 30, 30, 0.1, 1.0)
	want := fmt.Sprintf("id=%d, Outcome=education, Method=custom, ES=0.1000, Variance=1.0000", o.ID)
	if o.String() != want {
		t.Errorf("Expected %q, got %q", want, o.String())
	}
}

func TestCombine(t *testing.T) {
	outcome1 := NewEstimatedOutcome("education", 30, 30, 0.1, 1.0)
	outcome2 := NewEstimatedOutcome("education", 20, 25, 0.2, 2.0)

	combined, err := outcome1.Combine(outcome2)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	wantES := (0.1*(1/1.0) + 0.2*(1/2.0)) / (1.0 + 2.0)
	if math.Abs(combined.EffectSize-wantES) > 1e-12 {
		t.Errorf("Expected effect size %v, got %v", wantES, combined.EffectSize)
	}
	if combined.Variance != 3.0 {
		t.Errorf("Expected variance 3.0, got %v", combined.Variance)
	}
	if combined.TreatN != 50 || combined.ControlN != 55 {
		t.Errorf("Expected sample sizes 50/55, got %d/%d", combined.TreatN, combined.ControlN)
	}
	if combined.Label != "education" {
		t.Errorf("Expected label education, got %q", combined.Label)
	}

	// Combining is commutative in the resulting sample sizes.
	reversed, err := outcome2.Combine(outcome1)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if reversed.TreatN != combined.TreatN || reversed.ControlN != combined.ControlN {
		t.Errorf("Sample sizes must be order-independent: %d/%d vs %d/%d",
			reversed.TreatN, reversed.ControlN, combined.TreatN, combined.ControlN)
	}
}

func TestCombineLabelMismatch(t *testing.T) {
	outcome1 := NewEstimatedOutcome("education", 30, 30, 0.1, 1.0)
	outcome2 := NewEstimatedOutcome("crime", 20, 25, 0.2, 2.0)

	if _, err := outcome1.Combine(outcome2); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for mismatched labels, got %v", err)
	}
}

func TestCombineNonPositiveVariance(t *testing.T) {
	outcome1 := NewEstimatedOutcome("education", 30, 30, 0.1, 0)
	outcome2 := NewEstimatedOutcome("education", 20, 25, 0.2, 2.0)

	if _, err := outcome1.Combine(outcome2); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for zero variance, got %v", err)
	}
}

func TestEqualIgnoresID(t *testing.T) {
	outcome1 := NewEstimatedOutcome("education", 30, 30, 0.1, 1.0)
	outcome2 := NewEstimatedOutcome("education", 30, 30, 0.1, 1.0)
	outcome3 := NewEstimatedOutcome("education", 20, 25, 0.2, 2.0)
	outcome4 := NewEstimatedOutcome("crime", 30, 30, 0.1, 1.0)

	if outcome1.ID == outcome2.ID {
		t.Fatal("fixture outcomes must have distinct IDs")
	}
	if !outcome1.Equal(outcome2) {
		t.Error("Outcomes with identical statistical content must be equal")
	}
	if outcome1.Equal(outcome3) {
		t.Error("Outcomes with different estimates must not be equal")
	}
	if outcome1.Equal(outcome4) {
		t.Error("Outcomes with different labels must not be equal")
	}
	if outcome1.Equal(nil) {
		t.Error("Outcome must not equal nil")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	o := NewEstimatedOutcome("education", 30, 30, 0.1, 1.0)
	c := o.Copy()
	c.SetEstimate(0.9, 9.0)

	if o.EffectSize != 0.1 || o.Variance != 1.0 {
		t.Errorf("Mutating a copy must not affect the original: got ES=%v, Var=%v",
			o.EffectSize, o.Variance)
	}
	if c.ID != o.ID {
		t.Errorf("Copy keeps the identifier: got %d, want %d", c.ID, o.ID)
	}
}
