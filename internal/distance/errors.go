package distance

import "errors"

// Error taxonomy of the measurement chain. Callers match with errors.Is;
// most sites return these wrapped with call-specific context.
var (
	// ErrAcquisition reports a hardware or bus failure while reading raw
	// voltages. It aborts the current cycle, not the process.
	ErrAcquisition = errors.New("voltage acquisition failed")

	// ErrCalibrationUnavailable reports a missing, corrupt or too-small
	// calibration set. Conversion falls back to the theoretical curve.
	ErrCalibrationUnavailable = errors.New("calibration unavailable")

	// ErrOutOfRange is advisory: the voltage fell outside the calibrated
	// span and the result was clamped. The returned value is still usable.
	ErrOutOfRange = errors.New("reading outside calibrated range")

	// ErrInvalidConfig reports rejected parameters. State is unchanged.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoData reports a statistics query against an empty buffer.
	ErrNoData = errors.New("no data in buffer")
)
