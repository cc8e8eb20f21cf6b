package v1

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status       string `json:"status" example:"ready"`
	StoreHealthy bool   `json:"storeHealthy"`
	SinkReady    bool   `json:"sinkReady"`
	Error        string `json:"error,omitempty"`
}

// CursorResponse describes the committed cursor
type CursorResponse struct {
	Timestamp    uint64  `json:"timestamp" example:"1700000000"`
	Instant      *string `json:"instant" example:"2023-11-14T22:13:20Z"`
	HasTimestamp bool    `json:"hasTimestamp"`
	StoreHealthy bool    `json:"storeHealthy"`
}

// CursorStatusResponse adds lease state to CursorResponse
type CursorStatusResponse struct {
	CursorResponse
	LeaseActive bool   `json:"leaseActive"`
	Status      string `json:"status" example:"success"`
}

// CursorUpdateResponse reports a manual cursor write and its read-back
type CursorUpdateResponse struct {
	Message           string `json:"message"`
	Timestamp         uint64 `json:"timestamp"`
	Instant           string `json:"instant"`
	VerifiedTimestamp uint64 `json:"verifiedTimestamp"`
	UpdateSuccessful  bool   `json:"updateSuccessful"`
	Status            string `json:"status" example:"success"`
	Warning           string `json:"warning,omitempty"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status" example:"success"`
}

// SelfTestResponse reports a write/read round trip against the cursor store
type SelfTestResponse struct {
	Success  bool   `json:"success"`
	Written  uint64 `json:"written"`
	Read     uint64 `json:"read"`
	Restored bool   `json:"restored"`
	Status   string `json:"status" example:"success"`
	Error    string `json:"error,omitempty"`
}

// SinkHealthResponse reports sink readiness
type SinkHealthResponse struct {
	Status string `json:"status" example:"OK"`
	Error  string `json:"error,omitempty"`
}
