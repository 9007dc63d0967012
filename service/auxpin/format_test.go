package auxpin

import (
	"testing"
)

func TestFormatPeriodAverage(t *testing.T) {
	tests := []struct {
		avgPeriodTicks uint64
		want           string
	}{
		// Tier boundaries; longer periods earn more fractional digits.
		{0, "0.0"},
		{1, "16,000,000.0"},
		{12649, "1,264.9"},
		{12650, "1,264.82"},
		{40000, "400.00"},
		{40001, "399.990"},
		{126491, "126.491"},
		{400001, "39.99990"},
		// 1 kHz signal.
		{16000, "1,000.00"},
	}
	for _, test := range tests {
		if got := FormatPeriodAverage(test.avgPeriodTicks); got != test.want {
			t.Errorf("FormatPeriodAverage(%d) = %q, want %q", test.avgPeriodTicks, got, test.want)
		}
	}
}

func TestMeasurementString(t *testing.T) {
	tests := []struct {
		m    Measurement
		want string
	}{
		{Measurement{Strategy: StrategyEdgeCount, Frequency: 250000}, "250,000 Hz"},
		{Measurement{Strategy: StrategyEdgeCount}, MsgFrequencyTooLow},
		{Measurement{Strategy: StrategyPeriodAverage, Frequency: 1000, AvgPeriodTicks: 16000}, "1,000.00 Hz"},
	}
	for _, test := range tests {
		if got := test.m.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestMeasurementZero(t *testing.T) {
	if !(Measurement{Strategy: StrategyEdgeCount}).Zero() {
		t.Error("edge count of zero should be a zero measurement")
	}
	if (Measurement{Strategy: StrategyEdgeCount, Frequency: 1}).Zero() {
		t.Error("non-zero edge count reported as zero")
	}
	if (Measurement{Strategy: StrategyPeriodAverage, AvgPeriodTicks: 16000}).Zero() {
		t.Error("period average reported as zero")
	}
}
