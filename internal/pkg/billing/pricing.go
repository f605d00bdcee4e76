package billing

// MeterUnitSize is the billing provider's smallest chargeable increment of
// subscriber volume.
const MeterUnitSize = 10000

// pricingTiers maps a subscriber-count ceiling to a monthly price. The table
// must stay sorted ascending; PriceForSubscribers depends on it.
var pricingTiers = []struct {
	UpTo  int
	Cents int64
}{
	{UpTo: 1_000, Cents: 0},
	{UpTo: 5_000, Cents: 2_900},
	{UpTo: 25_000, Cents: 7_900},
	{UpTo: 100_000, Cents: 19_900},
	{UpTo: 500_000, Cents: 49_900},
}

// centsPerExtraUnit prices every started meter unit beyond the largest tier.
const centsPerExtraUnit = 9_900

// PriceForSubscribers computes the billable amount for a peak subscriber
// count. Pure and monotonically non-decreasing in count.
func PriceForSubscribers(count int) int64 {
	if count <= 0 {
		return 0
	}
	for _, tier := range pricingTiers {
		if count <= tier.UpTo {
			return tier.Cents
		}
	}
	top := pricingTiers[len(pricingTiers)-1]
	extraUnits := MeterUnits(count - top.UpTo)
	return top.Cents + extraUnits*centsPerExtraUnit
}

// MeterUnits converts a subscriber total into started meter units. Zero
// subscribers yield zero units; the result is never negative.
func MeterUnits(total int) int64 {
	if total <= 0 {
		return 0
	}
	return int64((total + MeterUnitSize - 1) / MeterUnitSize)
}
