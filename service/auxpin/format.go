package auxpin

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// resolutionTier maps an average period magnitude onto the scale constant
// and number of fractional digits that keep the printed resolution within
// one timer tick, preserving roughly constant relative resolution.
type resolutionTier struct {
	// The tier applies when the average period exceeds this many ticks.
	periodFloor uint64
	// scale / avgPeriodTicks yields the frequency in units of
	// 10^-decimals Hz.
	scale    uint64
	decimals int
}

var resolutionTiers = []resolutionTier{
	{periodFloor: 400000, scale: 1600000000000, decimals: 5},
	{periodFloor: 126491, scale: 160000000000, decimals: 4},
	{periodFloor: 40000, scale: 16000000000, decimals: 3},
	{periodFloor: 12649, scale: 1600000000, decimals: 2},
	{periodFloor: 0, scale: 160000000, decimals: 1},
}

func tierFor(avgPeriodTicks uint64) resolutionTier {
	for _, tier := range resolutionTiers {
		if avgPeriodTicks > tier.periodFloor {
			return tier
		}
	}
	return resolutionTiers[len(resolutionTiers)-1]
}

// FormatPeriodAverage renders the frequency measured as an average period
// in ticks, with thousands separators and the tier's fixed number of
// zero-padded fractional digits.
func FormatPeriodAverage(avgPeriodTicks uint64) string {
	if avgPeriodTicks == 0 {
		return "0.0"
	}
	tier := tierFor(avgPeriodTicks)
	scaled := tier.scale / avgPeriodTicks
	pow := uint64(1)
	for i := 0; i < tier.decimals; i++ {
		pow *= 10
	}
	return fmt.Sprintf("%s.%0*d", humanize.Comma(int64(scaled/pow)), tier.decimals, scaled%pow)
}

// String renders the measurement the way the probe prints it, with a Hz
// unit marker.
func (m Measurement) String() string {
	if m.Strategy == StrategyPeriodAverage {
		return FormatPeriodAverage(m.AvgPeriodTicks) + " Hz"
	}
	if m.Frequency == 0 {
		return MsgFrequencyTooLow
	}
	return humanize.Comma(int64(m.Frequency)) + " Hz"
}
