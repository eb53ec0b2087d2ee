package model

import "time"

type ScanType string

const (
	ScanT1       ScanType = "T1"
	ScanT2       ScanType = "T2"
	ScanFLAIR    ScanType = "FLAIR"
	ScanDWI      ScanType = "DWI"
	ScanContrast ScanType = "Contrast"
)

// ScanTypes lists every accepted scan type.
var ScanTypes = []ScanType{ScanT1, ScanT2, ScanFLAIR, ScanDWI, ScanContrast}

// ProcessingStatus tracks a detection attempt on an image.
// Pending -> Processing -> {Completed, Failed}; a new attempt restarts at Processing.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "Pending"
	StatusProcessing ProcessingStatus = "Processing"
	StatusCompleted  ProcessingStatus = "Completed"
	StatusFailed     ProcessingStatus = "Failed"
)

// IsTerminal reports whether s ends a detection attempt.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MRIImage is an uploaded scan stored in object storage.
type MRIImage struct {
	ID                string           `json:"id"`
	PatientID         string           `json:"patientId"`
	ImageURL          string           `json:"imageUrl"`
	StorageKey        string           `json:"storageKey"`
	FileName          string           `json:"fileName"`
	FileSize          int64            `json:"fileSize"`
	MimeType          string           `json:"mimeType"`
	ScanType          ScanType         `json:"scanType"`
	ScanDate          time.Time        `json:"scanDate"`
	ProcessingStatus  ProcessingStatus `json:"processingStatus"`
	AnalysisCompleted bool             `json:"analysisCompleted"`
	UploadedBy        string           `json:"uploadedBy"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// MRIImageSummary is the joined view of an image embedded in analyses.
type MRIImageSummary struct {
	ID               string           `json:"id"`
	FileName         string           `json:"fileName"`
	ScanType         ScanType         `json:"scanType"`
	ScanDate         time.Time        `json:"scanDate"`
	ImageURL         string           `json:"imageUrl"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
}
