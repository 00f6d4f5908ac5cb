package models

import "time"

// FileTypeCheck is the result of comparing leading bytes with the declared media type
type FileTypeCheck struct {
	IsValid          bool   `json:"isValid"`
	DetectedHeader   string `json:"detectedHeader,omitempty"` // hex of the first 8 bytes
	ExpectedMimeType string `json:"expectedMimeType"`
	Reason           string `json:"reason"`
}

// IntegrityCheck holds the content digests computed for later tamper detection
type IntegrityCheck struct {
	IsValid bool   `json:"isValid"`
	SHA256  string `json:"sha256"`
	SHA512  string `json:"sha512"`
	Size    int    `json:"size"`
}

// StegoCheck is the steganography entry of a validation result
type StegoCheck struct {
	Success      bool          `json:"success"`
	IsSuspicious bool          `json:"isSuspicious"`
	Confidence   float64       `json:"confidence"`
	Threshold    float64       `json:"threshold"`
	Reasons      []string      `json:"reasons"`
	Details      *ChecksBundle `json:"details,omitempty"`
	Duration     time.Duration `json:"duration"`
	TimedOut     bool          `json:"timedOut,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ValidationChecks groups the optional check results of a validation
type ValidationChecks struct {
	FileType      *FileTypeCheck  `json:"fileType,omitempty"`
	Integrity     *IntegrityCheck `json:"integrity,omitempty"`
	Steganography *StegoCheck     `json:"steganography,omitempty"`
}

// ValidationResult is the top-level answer returned to the upload layer.
// Errors are blocking, warnings are informational.
type ValidationResult struct {
	IsValid  bool             `json:"isValid"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`
	Checks   ValidationChecks `json:"checks"`
}

// NewValidationResult creates a result that is valid until an error is added
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
	}
}

// AddError records a hard failure and marks the result invalid
func (r *ValidationResult) AddError(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

// AddWarning records a soft, non-blocking signal
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
