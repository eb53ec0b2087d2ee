package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// RiskLevel grades progression and recurrence risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// Phenotype and classification vocabularies. The generator samples from these lists;
// the "Other"/"Unknown" values are accepted from external providers only.
var (
	Shapes       = []string{"Irregular", "Spherical", "Lobulated", "Infiltrative"}
	Textures     = []string{"Heterogeneous", "Homogeneous", "Mixed", "Necrotic"}
	Enhancements = []string{"Ring-enhancing", "Nodular", "Homogeneous", "None"}
	TumourTypes  = []string{"Glioblastoma", "Astrocytoma", "Oligodendroglioma", "Meningioma", "Metastasis"}
	TumourGrades = []string{"Grade I", "Grade II", "Grade III", "Grade IV"}
	Malignancies = []string{"Benign", "Low-grade malignant", "High-grade malignant"}
	RiskLevels   = []RiskLevel{RiskLow, RiskModerate, RiskHigh}
)

// Location is the voxel position of a detected tumour.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TumourSize holds volume in mm³ and bounding dimensions in mm.
type TumourSize struct {
	Volume     float64    `json:"volume"`
	Dimensions Dimensions `json:"dimensions"`
}

// DetectionResults is the outcome of a detection run.
// Location and Size are set only when a tumour was detected.
type DetectionResults struct {
	TumourDetected bool        `json:"tumourDetected"`
	Confidence     float64     `json:"confidence"`
	Location       *Location   `json:"location,omitempty"`
	Size           *TumourSize `json:"size,omitempty"`
}

func (d DetectionResults) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Confidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&d.Location, validation.When(!d.TumourDetected, validation.Nil)),
		validation.Field(&d.Size, validation.When(!d.TumourDetected, validation.Nil)),
	)
}

type Phenotype struct {
	Shape         string  `json:"shape"`
	Texture       string  `json:"texture"`
	Intensity     float64 `json:"intensity"`
	Heterogeneity float64 `json:"heterogeneity"`
	Enhancement   string  `json:"enhancement"`
}

func (p Phenotype) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Shape, validation.Required, validation.In(toAny(Shapes)...)),
		validation.Field(&p.Texture, validation.Required, validation.In(toAny(Textures)...)),
		validation.Field(&p.Enhancement, validation.Required, validation.In(toAny(Enhancements)...)),
		validation.Field(&p.Intensity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&p.Heterogeneity, validation.Min(0.0), validation.Max(1.0)),
	)
}

type Classification struct {
	Type       string `json:"type"`
	Grade      string `json:"grade"`
	Malignancy string `json:"malignancy"`
}

func (c Classification) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required, validation.In(toAny(append(TumourTypes, "Other"))...)),
		validation.Field(&c.Grade, validation.Required, validation.In(toAny(append(TumourGrades, "Unknown"))...)),
		validation.Field(&c.Malignancy, validation.Required, validation.In(toAny(append(Malignancies, "Unknown"))...)),
	)
}

type RiskAssessment struct {
	ProgressionRisk RiskLevel `json:"progressionRisk"`
	RecurrenceRisk  RiskLevel `json:"recurrenceRisk"`
	Score           float64   `json:"score"`
}

func (r RiskAssessment) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProgressionRisk, validation.Required, validation.In(toAny(RiskLevels)...)),
		validation.Field(&r.RecurrenceRisk, validation.Required, validation.In(toAny(RiskLevels)...)),
		validation.Field(&r.Score, validation.Min(0.0), validation.Max(100.0)),
	)
}

// TumourAnalysis is a persisted detection outcome for one MRI image.
// It is created once and afterwards only gains biomarker ids.
type TumourAnalysis struct {
	ID               string           `json:"id"`
	MRIImageID       string           `json:"mriImageId"`
	PatientID        string           `json:"patientId"`
	DetectionResults DetectionResults `json:"detectionResults"`
	Phenotype        *Phenotype       `json:"phenotypeCharacteristics"`
	Classification   *Classification  `json:"classification"`
	RiskAssessment   RiskAssessment   `json:"riskAssessment"`
	BiomarkerIDs     []string         `json:"biomarkerIds"`
	AnalyzedBy       string           `json:"analyzedBy"`
	AnalysisDate     time.Time        `json:"analysisDate"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Validate enforces the record invariants: phenotype and classification are present
// exactly when a tumour was detected, and all scores stay within their ranges.
func (a TumourAnalysis) Validate() error {
	detected := a.DetectionResults.TumourDetected
	return validation.ValidateStruct(&a,
		validation.Field(&a.MRIImageID, validation.Required, is.UUID),
		validation.Field(&a.PatientID, validation.Required, is.UUID),
		validation.Field(&a.DetectionResults),
		validation.Field(&a.Phenotype, validation.When(detected, validation.NotNil).Else(validation.Nil)),
		validation.Field(&a.Classification, validation.When(detected, validation.NotNil).Else(validation.Nil)),
		validation.Field(&a.RiskAssessment),
	)
}

// AnalysisDetail is a TumourAnalysis with its references resolved for display.
// Image, Patient and Analyst are nil when the referenced row no longer exists.
type AnalysisDetail struct {
	TumourAnalysis
	MRIImage   *MRIImageSummary `json:"mriImage"`
	Patient    *PatientSummary  `json:"patient"`
	Analyst    *UserSummary     `json:"analyst"`
	Biomarkers []Biomarker      `json:"biomarkers"`
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
