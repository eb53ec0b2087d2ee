package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type BiomarkerCategory string

const (
	CategoryGenetic   BiomarkerCategory = "Genetic"
	CategoryProtein   BiomarkerCategory = "Protein"
	CategoryImaging   BiomarkerCategory = "Imaging"
	CategoryMetabolic BiomarkerCategory = "Metabolic"
)

var BiomarkerCategories = []BiomarkerCategory{CategoryGenetic, CategoryProtein, CategoryImaging, CategoryMetabolic}

// BiomarkerValue is either a boolean finding or a numeric index.
// It serializes as a bare JSON boolean or number.
type BiomarkerValue struct {
	Bool   *bool
	Number *float64
}

// BoolValue returns a boolean biomarker value.
func BoolValue(b bool) BiomarkerValue { return BiomarkerValue{Bool: &b} }

// NumberValue returns a numeric biomarker value.
func NumberValue(f float64) BiomarkerValue { return BiomarkerValue{Number: &f} }

func (v BiomarkerValue) IsBool() bool { return v.Bool != nil }

func (v BiomarkerValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Bool != nil:
		return json.Marshal(*v.Bool)
	case v.Number != nil:
		return json.Marshal(*v.Number)
	default:
		return []byte("null"), nil
	}
}

func (v *BiomarkerValue) UnmarshalJSON(data []byte) error {
	*v = BiomarkerValue{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		v.Bool = &b
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		v.Number = &f
		return nil
	}
	return errors.New("biomarker value must be a boolean or a number")
}

// Biomarker is one detected indicator linked to an analysis. Immutable once stored.
type Biomarker struct {
	ID                string            `json:"id"`
	AnalysisID        string            `json:"analysisId"`
	Name              string            `json:"name"`
	Category          BiomarkerCategory `json:"category"`
	Value             BiomarkerValue    `json:"value"`
	Significance      string            `json:"significance"`
	AssociatedGenes   []string          `json:"associatedGenes"`
	ClinicalRelevance string            `json:"clinicalRelevance"`
	DetectionMethod   string            `json:"detectionMethod"`
	Confidence        float64           `json:"confidence"`
	CreatedAt         time.Time         `json:"createdAt"`
}

var errValueMissing = errors.New("must be a boolean or a number")

// Validate checks a biomarker as returned by a provider, before ids are assigned.
func (b Biomarker) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.Category, validation.Required, validation.In(toAny(BiomarkerCategories)...)),
		validation.Field(&b.Value, validation.By(func(any) error {
			if b.Value.Bool == nil && b.Value.Number == nil {
				return errValueMissing
			}
			return nil
		})),
		validation.Field(&b.Confidence, validation.Min(0.0), validation.Max(1.0)),
	)
}
