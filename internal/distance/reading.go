package distance

// Reading is the outcome of one completed pipeline cycle.
type Reading struct {
	DistanceCM    float64 `json:"distance_cm"`     // filtered estimate
	RawDistanceCM float64 `json:"raw_distance_cm"` // conversion output before filtering
	StdDevCM      float64 `json:"stddev_cm"`       // spread over the recent window
	Voltage       float64 `json:"voltage"`         // outlier-filtered burst voltage
	VoltageStdDev float64 `json:"voltage_stddev"`
	InRange       bool    `json:"in_range"`
	TimestampMS   int64   `json:"timestamp_ms"`
}

// Stats is the aggregate diagnostics block published next to readings.
type Stats struct {
	Readings int     `json:"readings"`
	ElapsedS float64 `json:"elapsed_s"`
	RateHz   float64 `json:"rate_hz"`
	State    string  `json:"state"`

	DistanceCM         float64 `json:"distance_cm"` // most recent estimate
	DistanceWeightedCM float64 `json:"distance_weighted_cm"`
	DistanceMeanCM     float64 `json:"distance_mean_cm"`
	DistanceStdCM      float64 `json:"distance_std_cm"`
	DistanceMinCM      float64 `json:"distance_min_cm"`
	DistanceMaxCM      float64 `json:"distance_max_cm"`
	TrendCMPerRead     float64 `json:"trend_cm_per_read"`

	VoltageMean float64 `json:"voltage_mean"`
	VoltageStd  float64 `json:"voltage_std"`

	KalmanEstimate   float64 `json:"kalman_estimate"`
	KalmanCovariance float64 `json:"kalman_covariance"`

	CalibrationPoints int  `json:"calibration_points"`
	Calibrated        bool `json:"calibrated"`
}
