package billing

import "testing"

func TestMeterUnits(t *testing.T) {
	tests := []struct {
		total int
		want  int64
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{9_999, 1},
		{10_000, 1},
		{10_001, 2},
		{20_000, 2},
		{20_001, 3},
	}

	for _, tt := range tests {
		if got := MeterUnits(tt.total); got != tt.want {
			t.Errorf("MeterUnits(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestPriceForSubscribersTiers(t *testing.T) {
	tests := []struct {
		count int
		want  int64
	}{
		{0, 0},
		{-1, 0},
		{1, 0},
		{1_000, 0},
		{1_001, 2_900},
		{5_000, 2_900},
		{5_001, 7_900},
		{25_000, 7_900},
		{25_001, 19_900},
		{100_000, 19_900},
		{100_001, 49_900},
		{500_000, 49_900},
		{500_001, 49_900 + 9_900},
		{510_000, 49_900 + 9_900},
		{510_001, 49_900 + 2*9_900},
	}

	for _, tt := range tests {
		if got := PriceForSubscribers(tt.count); got != tt.want {
			t.Errorf("PriceForSubscribers(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestPriceForSubscribersMonotonic(t *testing.T) {
	prev := int64(0)
	for count := 0; count <= 600_000; count += 997 {
		price := PriceForSubscribers(count)
		if price < prev {
			t.Fatalf("price decreased at count %d: %d < %d", count, price, prev)
		}
		prev = price
	}
}
