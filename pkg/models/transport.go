package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateSessionResponse is returned when a session is opened
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// RemoteFrameRequest asks the server to fetch and analyse a frame
type RemoteFrameRequest struct {
	URL           string `json:"url" binding:"required"`
	Source        string `json:"source,omitempty"`
	ExpectedLabel string `json:"expected_label,omitempty"`
}

// ClassifyRequest classifies explicit readings with the chosen mode
type ClassifyRequest struct {
	Mode            string   `json:"mode,omitempty"`
	Temperature     *float64 `json:"temperature" binding:"required"`
	PH              *float64 `json:"ph" binding:"required"`
	Flow            *float64 `json:"flow" binding:"required"`
	DissolvedOxygen *float64 `json:"dissolved_oxygen,omitempty"`
}

// DrowningAlertRequest records an alert raised by a detector
type DrowningAlertRequest struct {
	Message   string `json:"message" binding:"required"`
	Severity  string `json:"severity,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}
