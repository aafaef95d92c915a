package models

// AnalysisRequest asks for a forgery analysis of the image at URL
type AnalysisRequest struct {
	URL     string                  `json:"url" binding:"required,url"`
	Options *AnalysisOptionsRequest `json:"options,omitempty"`
}

// AnalysisOptionsRequest overrides the configured analysis defaults.
// Unset fields keep the server defaults.
type AnalysisOptionsRequest struct {
	ELAQuality              *int     `json:"ela_quality,omitempty" form:"ela_quality"`
	SuspiciousAreaThreshold *float64 `json:"suspicious_area_threshold,omitempty" form:"suspicious_area_threshold"`
	MetadataCheckEnabled    *bool    `json:"metadata_check_enabled,omitempty" form:"metadata_check_enabled"`
	IncludeELAImage         bool     `json:"include_ela_image,omitempty" form:"include_ela_image"`
}

// BatchAnalysisRequest analyzes several images with shared options
type BatchAnalysisRequest struct {
	URLs    []string                `json:"urls" binding:"required,min=1,max=50,dive,required"`
	Options *AnalysisOptionsRequest `json:"options,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}
