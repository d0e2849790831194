package models

import "testing"

func TestTierForBoundaries(t *testing.T) {
	tiers := DefaultTierThresholds()
	cases := map[int]int{1: 4, 2: 3, 3: 2, 4: 1, 5: 1, 12: 1}
	for freq, want := range cases {
		if got := tiers.TierFor(freq); got != want {
			t.Errorf("TierFor(%d) = %d, want %d", freq, got, want)
		}
	}
}

func TestTierThresholdsValidate(t *testing.T) {
	if err := DefaultTierThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds must validate: %v", err)
	}
	bad := []TierThresholds{
		{Tier1Min: 2, Tier2Min: 3, Tier3Min: 4},
		{Tier1Min: 3, Tier2Min: 3, Tier3Min: 2},
		{Tier1Min: 4, Tier2Min: 3, Tier3Min: 1},
	}
	for _, tc := range bad {
		if err := tc.Validate(); err == nil {
			t.Errorf("thresholds %+v should be rejected", tc)
		}
	}
}

func TestKTUStandardPatternMapping(t *testing.T) {
	p := KTUStandardPattern()
	if err := p.Validate(); err != nil {
		t.Fatalf("standard pattern must validate: %v", err)
	}
	cases := []struct {
		part   string
		number int
		module int
	}{
		{"A", 1, 1}, {"A", 2, 1}, {"A", 3, 2}, {"A", 10, 5},
		{"B", 11, 1}, {"B", 12, 1}, {"B", 13, 2}, {"B", 20, 5},
	}
	for _, tc := range cases {
		got, ok := p.ModuleFor(tc.part, tc.number)
		if !ok || got != tc.module {
			t.Errorf("ModuleFor(%s, %d) = %d,%v, want %d", tc.part, tc.number, got, ok, tc.module)
		}
	}
	if _, ok := p.ModuleFor("A", 25); ok {
		t.Error("unmapped number should not resolve")
	}
	if p.DefaultMarks("A") != 3 || p.DefaultMarks("B") != 14 {
		t.Errorf("default marks: A=%d B=%d", p.DefaultMarks("A"), p.DefaultMarks("B"))
	}
}

func TestPatternValidateRejectsBadConfig(t *testing.T) {
	bad := ExamPattern{
		Name:  "broken",
		Parts: map[string]PartPattern{"C": {MarksPerQuestion: 3}},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("unknown part should be rejected")
	}
	zeroMarks := ExamPattern{
		Name:  "broken",
		Parts: map[string]PartPattern{"A": {MarksPerQuestion: 0}},
	}
	if err := zeroMarks.Validate(); err == nil {
		t.Fatal("zero marks should be rejected")
	}
}

func TestPatternByName(t *testing.T) {
	if got := PatternByName("generic_6_module").Name; got != "generic_6_module" {
		t.Errorf("generic_6_module: got %q", got)
	}
	if got := PatternByName("unknown").Name; got != "ktu_standard" {
		t.Errorf("unknown name fallback: got %q", got)
	}
}
