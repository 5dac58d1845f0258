package api

import "testing"

func TestClampRowLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultRowLimit},
		{-5, DefaultRowLimit},
		{1, MinRowLimit},
		{100, 100},
		{250, 200},
		{5000, 5000},
		{9999, MaxRowLimit},
	}

	for _, tt := range tests {
		if got := ClampRowLimit(tt.in); got != tt.want {
			t.Errorf("ClampRowLimit(%d): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}
