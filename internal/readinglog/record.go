package readinglog

// Record is one logged pipeline reading.
type Record struct {
	ID            int64   `json:"id"`
	Timestamp     string  `json:"ts"` // RFC3339
	ElapsedS      float64 `json:"elapsed_s"`
	DistanceCM    float64 `json:"distance_cm"`
	DistanceRawCM float64 `json:"distance_raw_cm"`
	VoltageV      float64 `json:"voltage_v"`
	VoltageStd    float64 `json:"voltage_std"`
	KalmanP       float64 `json:"kalman_p"`
}
