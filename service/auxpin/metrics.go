package auxpin

import (
	"github.com/probeworks/auxpin/pkg/metrics"
)

const (
	subSystem = "aux"
)

var (
	// Number of programmed PWM waveforms
	pwmProgramsTotal = metrics.MustRegisterCounter(subSystem,
		"pwm_programs_total",
		"Number of programmed PWM waveforms")

	// Number of programmed servo waveforms
	servoProgramsTotal = metrics.MustRegisterCounter(subSystem,
		"servo_programs_total",
		"Number of programmed servo waveforms")

	// Frequency measurement metrics
	measurementsTotal = metrics.MustRegisterCounterVec(subSystem,
		"frequency_measurements_total",
		"Number of completed frequency measurements",
		"strategy")
	measurementDuration = metrics.MustRegisterHistogram(subSystem,
		"frequency_measurement_duration_seconds",
		"Wall clock duration of frequency measurements")

	// Current AUX pin mode (0=io, 1=frequency, 2=pwm)
	modeGauge = metrics.MustRegisterGauge(subSystem,
		"mode",
		"Current AUX pin mode (0=io, 1=frequency, 2=pwm)")
)
