package store

import "testing"

func TestPercentileWindow(t *testing.T) {
	tests := []struct {
		name           string
		total          int64
		minPct, maxPct float64
		limit          int
		skip, take     int64
	}{
		{"top 10% of 100", 100, 90, 100, 50, 0, 10},
		{"10-20% band of 100", 100, 80, 90, 50, 10, 10},
		{"take capped by limit", 100, 0, 100, 5, 0, 5},
		{"empty population", 0, 0, 100, 10, 0, 0},
		{"inverted bounds", 100, 90, 10, 10, 0, 0},
		{"bounds clamped", 100, -10, 150, 100, 0, 100},
		{"rounding up take", 10, 75, 100, 100, 0, 3},
	}
	for _, tc := range tests {
		skip, take := PercentileWindow(tc.total, tc.minPct, tc.maxPct, tc.limit)
		if skip != tc.skip || take != tc.take {
			t.Errorf("%s: PercentileWindow = (%d, %d), want (%d, %d)",
				tc.name, skip, take, tc.skip, tc.take)
		}
	}
}
