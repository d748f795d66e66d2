package config

// DiffResult describes what changed between two configs. The listen loop applies
// changes between capture sessions: log level takes effect immediately,
// tuning and engine changes apply to the next session.
type DiffResult struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CaptureChanged covers the audio, capture, and calibration sections.
	CaptureChanged bool

	// VADChanged covers the detection engine selection and its tuning.
	VADChanged bool

	// OutputChanged covers the artifact directory.
	OutputChanged bool
}

// Changed reports whether anything reloadable differs.
func (d DiffResult) Changed() bool {
	return d.LogLevelChanged || d.CaptureChanged || d.VADChanged || d.OutputChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) DiffResult {
	d := DiffResult{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.Audio != new.Audio || old.Capture != new.Capture || !calibrationEqual(old.Calibration, new.Calibration) {
		d.CaptureChanged = true
	}
	if old.VAD != new.VAD {
		d.VADChanged = true
	}
	if old.Output != new.Output {
		d.OutputChanged = true
	}
	return d
}

func calibrationEqual(a, b CalibrationConfig) bool {
	if (a.Enabled == nil) != (b.Enabled == nil) {
		return false
	}
	if a.Enabled != nil && *a.Enabled != *b.Enabled {
		return false
	}
	return a.TargetDuration == b.TargetDuration && a.Timeout == b.Timeout && a.Multiplier == b.Multiplier
}
