package models

import "time"

// Reading is a set of smoothed readings with their status label
type Reading struct {
	Flow        float64 `json:"flow"`
	Temperature float64 `json:"temperature"`
	PH          float64 `json:"ph"`
	Emotion     string  `json:"emotion"`
}

// RawReading is the unsmoothed output for a single frame
type RawReading struct {
	Flow        float64 `json:"flow"`
	HasFlow     bool    `json:"has_flow"`
	Temperature float64 `json:"temperature"`
	PH          float64 `json:"ph"`
	HasFeatures bool    `json:"has_features"`
}

// FrameFeatures are the image statistics the readings are derived from
type FrameFeatures struct {
	MeanValue        float64 `json:"mean_value"`
	SaturationStdDev float64 `json:"saturation_stddev"`
	EdgeDensity      float64 `json:"edge_density"`
}

// OverlayCheck reports how well the burned-in camera label matched
type OverlayCheck struct {
	Expected           string  `json:"expected"`
	Recognized         string  `json:"recognized"`
	CharacterErrorRate float64 `json:"character_error_rate"`
	WordErrorRate      float64 `json:"word_error_rate"`
	Matched            bool    `json:"matched"`
}

// FrameAnalysisResponse is returned for every analysed frame
type FrameAnalysisResponse struct {
	SessionID         string        `json:"session_id"`
	FrameIndex        int           `json:"frame_index"`
	Timestamp         time.Time     `json:"timestamp"`
	ProcessingTimeSec float64       `json:"processing_time_sec"`
	Reading           Reading       `json:"reading"`
	Raw               RawReading    `json:"raw"`
	Features          FrameFeatures `json:"features"`
	Overlay           *OverlayCheck `json:"overlay,omitempty"`
}

// FlowResponse is the flow-only view of a frame
type FlowResponse struct {
	SessionID   string  `json:"session_id,omitempty"`
	Flow        float64 `json:"flow"`
	FlowRateM3S float64 `json:"flow_rate_m3s"`
	HasFlow     bool    `json:"has_flow"`
}

// VideoAnalysisResponse summarises a whole uploaded video
type VideoAnalysisResponse struct {
	Temperature       float64 `json:"temperature"`
	PH                float64 `json:"ph"`
	Flow              float64 `json:"flow"`
	Emotion           string  `json:"emotion"`
	FramesAnalyzed    int     `json:"frames_analyzed"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// EmotionResponse describes the river's current status
type EmotionResponse struct {
	Emotion         string    `json:"emotion"`
	StressScore     float64   `json:"stress_score"`
	Temperature     float64   `json:"temperature"`
	PH              float64   `json:"ph"`
	FlowRate        float64   `json:"flow_rate"`
	DissolvedOxygen float64   `json:"dissolved_oxygen"`
	WaterLevel      float64   `json:"water_level"`
	Clarity         float64   `json:"clarity"`
	Source          string    `json:"source"`
	Timestamp       time.Time `json:"timestamp"`
}

// ClassifyResponse is the label for explicit readings
type ClassifyResponse struct {
	Mode        string  `json:"mode"`
	Strategy    string  `json:"strategy"`
	Emotion     string  `json:"emotion"`
	StressScore float64 `json:"stress_score"`
}

// StatsResponse reports pipeline counters
type StatsResponse struct {
	FramesAnalyzed       int64            `json:"frames_analyzed"`
	FramesFailed         int64            `json:"frames_failed"`
	FetchFailures        int64            `json:"fetch_failures"`
	VideosCompleted      int64            `json:"videos_completed"`
	Emotions             map[string]int64 `json:"emotions"`
	AvgProcessingTimeSec float64          `json:"avg_processing_time_sec"`
	ActiveSessions       int              `json:"active_sessions"`
	Workers              int              `json:"workers"`
	PoolJobsCompleted    int64            `json:"pool_jobs_completed"`
	UptimeSec            float64          `json:"uptime_sec"`
}
