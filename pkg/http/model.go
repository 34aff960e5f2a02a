package http

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"name"`
	Message string                 `json:"message,omitempty" example:"Name is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse represents a list response.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

// JobResponse is the body returned by job trigger endpoints.
type JobResponse struct {
	OK              bool   `json:"ok"`
	RowsProcessed   *int   `json:"rowsProcessed,omitempty"`
	CreditsUsed     *int   `json:"creditsUsed,omitempty"`
	RequestsMade    *int   `json:"requestsMade,omitempty"`
	MissingDetected *int   `json:"missingDetected,omitempty"`
	Skipped         bool   `json:"skipped,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Error           string `json:"error,omitempty"`
}
