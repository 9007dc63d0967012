package auxpin

// User facing messages emitted by the interactive commands, mirroring the
// probe firmware strings.
const (
	MsgPWMDisabled          = "PWM disabled"
	MsgPWMActive            = "PWM active"
	MsgServoActive          = "Servo active"
	MsgFrequencyPWMConflict = "frequency counting unavailable while PWM is active"
	MsgFrequencyPrefix      = "AUX frequency: "
	MsgAutorange            = "autorange"
	MsgFrequencyTooLow      = "frequency too low to measure"
	MsgAuxHigh              = "AUX HIGH"
	MsgAuxLow               = "AUX LOW"
	MsgAuxInput             = "AUX INPUT"
)
