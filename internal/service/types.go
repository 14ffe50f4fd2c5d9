package service

// Request is one submission as sent to the transcription service.
type Request struct {
	Image       []byte
	Filename    string
	ContentType string
	// Mode is the wire string of the capture mode.
	Mode string
	// TargetLanguage is omitted from the form when empty.
	TargetLanguage string
	// RequestID is echoed in the X-Request-ID header for correlation.
	RequestID string
}

// Response is the decoded success body. A nil field was absent (or null)
// in the payload; an empty string was sent as "".
type Response struct {
	Raw        *string `json:"raw"`
	Refined    *string `json:"ai"`
	Translated *string `json:"translated"`
	// Image is a data URL, e.g. "data:image/jpeg;base64,...".
	Image *string `json:"image"`
	// Error is set by the service for undecodable uploads, with status 200.
	Error *string `json:"error,omitempty"`
}

var knownFields = []string{"raw", "ai", "translated", "image"}
