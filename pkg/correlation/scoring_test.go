package correlation

import (
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestWithinWindowBoundaries(t *testing.T) {
	event := baseTime
	cases := []struct {
		name string
		gap  time.Duration
		want bool
	}{
		{"exactly two hours", 2 * time.Hour, true},
		{"exactly eight hours", 8 * time.Hour, true},
		{"one fifty-nine", time.Hour + 59*time.Minute, false},
		{"eight oh one", 8*time.Hour + time.Minute, false},
		{"after the symptom", -time.Hour, false},
		{"peak", 4 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := withinWindow(event, event.Add(-tc.gap)); got != tc.want {
				t.Fatalf("withinWindow(%s) = %v, want %v", tc.gap, got, tc.want)
			}
		})
	}
}

func TestBaseScore(t *testing.T) {
	cases := []struct {
		hours float64
		want  float64
	}{
		{2, 0.7},
		{2.5, 0.7},
		{3, 0.8},
		{4, 0.8},
		{5, 0.8},
		{5.5, 0.7},
		{6, 0.7},
		{6.5, 0.5},
		{8, 0.5},
	}
	for _, tc := range cases {
		if got := baseScore(tc.hours); got != tc.want {
			t.Fatalf("baseScore(%v) = %v, want %v", tc.hours, got, tc.want)
		}
	}
}

func TestMealScorePeakWindow(t *testing.T) {
	score, flagged := mealScore(4, intPtr(8))
	if math.Abs(score-0.752) > epsilon {
		t.Fatalf("expected 0.752, got %v", score)
	}
	if !flagged {
		t.Fatal("discomfort 8 must be flagged")
	}
}

func TestMealScoreMissingDiscomfort(t *testing.T) {
	score, flagged := mealScore(6.5, nil)
	if math.Abs(score-0.425) > epsilon {
		t.Fatalf("expected 0.425, got %v", score)
	}
	if flagged {
		t.Fatal("missing discomfort must never flag")
	}
}

func TestMealScoreFlagThreshold(t *testing.T) {
	if _, flagged := mealScore(4, intPtr(6)); flagged {
		t.Fatal("discomfort 6 must not flag")
	}
	if _, flagged := mealScore(4, intPtr(7)); !flagged {
		t.Fatal("discomfort 7 must flag")
	}
}

func TestScoresStayBounded(t *testing.T) {
	for _, discomfort := range []int{0, 5, 10, 50} {
		for _, hours := range []float64{2, 3, 4, 6, 8} {
			score, _ := mealScore(hours, intPtr(discomfort))
			if score < 0 || score > MaxConfidence {
				t.Fatalf("score %v out of bounds for discomfort %d hours %v", score, discomfort, hours)
			}
		}
	}

	for _, total := range []int{3, 20, 1000} {
		c := foodConfidence(1, 10, total)
		if c < 0 || c > MaxConfidence {
			t.Fatalf("confidence %v out of bounds", c)
		}
	}
	if got := foodConfidence(1, 10, 20); got != MaxConfidence {
		t.Fatalf("expected confidence capped at %v, got %v", MaxConfidence, got)
	}
	if got := clampScore(math.NaN()); got != 0 {
		t.Fatalf("expected NaN to clamp to 0, got %v", got)
	}
}

func TestClassifyRiskStrictBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  RiskLevel
	}{
		{0.61, RiskHigh},
		{0.6, RiskMedium},
		{6.0 / 10.0, RiskMedium},
		{0.31, RiskMedium},
		{0.3, RiskLow},
		{0, RiskLow},
	}
	for _, tc := range cases {
		if got := classifyRisk(tc.ratio); got != tc.want {
			t.Fatalf("classifyRisk(%v) = %s, want %s", tc.ratio, got, tc.want)
		}
	}
}

func TestPercentClamps(t *testing.T) {
	if percent(0.71) != 71 {
		t.Fatalf("expected 71, got %d", percent(0.71))
	}
	if percent(1.4) != 100 {
		t.Fatalf("expected clamp to 100, got %d", percent(1.4))
	}
}
