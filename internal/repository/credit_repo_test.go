package repository

import "testing"

func TestSplitSpendFreeFirst(t *testing.T) {
	cases := []struct {
		name      string
		freeAvail int
		cost      int
		wantFree  int
		wantPaid  int
	}{
		{"all free", 2, 1, 1, 0},
		{"exact free", 2, 2, 2, 0},
		{"spills into paid", 1, 3, 1, 2},
		{"no free left", 0, 2, 0, 2},
		{"negative free treated as zero", -1, 2, 0, 2},
		{"zero cost", 2, 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			free, paid := splitSpend(tc.freeAvail, tc.cost)
			if free != tc.wantFree || paid != tc.wantPaid {
				t.Errorf("splitSpend(%d, %d) = (%d, %d), want (%d, %d)",
					tc.freeAvail, tc.cost, free, paid, tc.wantFree, tc.wantPaid)
			}
			if free+paid != tc.cost {
				t.Errorf("split must sum to the cost: %d + %d != %d", free, paid, tc.cost)
			}
		})
	}
}

func TestSpendType(t *testing.T) {
	if got := spendType(2, 0); got != "free" {
		t.Errorf("free-only spend classified as %s", got)
	}
	if got := spendType(0, 3); got != "paid" {
		t.Errorf("paid-only spend classified as %s", got)
	}
	if got := spendType(1, 2); got != "mixed" {
		t.Errorf("mixed spend classified as %s", got)
	}
	// A zero-cost spend touches nothing paid, so it counts as free.
	if got := spendType(0, 0); got != "free" {
		t.Errorf("zero spend classified as %s", got)
	}
}
