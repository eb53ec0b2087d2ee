package detection

import (
	"math"

	"tumourscan/internal/model"
)

const (
	// nonDetectionRate is the share of draws that report no tumour.
	nonDetectionRate = 0.3

	scanWidth  = 512
	scanHeight = 512
	scanDepth  = 100
)

// TumourResult is the payload of one detection run, before it is bound to an image or patient.
// Phenotype and Classification are nil when no tumour was detected.
type TumourResult struct {
	Detection      model.DetectionResults `json:"detectionResults"`
	Phenotype      *model.Phenotype       `json:"phenotypeCharacteristics"`
	Classification *model.Classification  `json:"classification"`
	Risk           model.RiskAssessment   `json:"riskAssessment"`
}

// Generator produces simulated detection payloads from a Source.
type Generator struct {
	src Source
}

func NewGenerator(src Source) *Generator {
	return &Generator{src: src}
}

// Tumour samples a detection outcome.
func (g *Generator) Tumour() TumourResult {
	detected := g.src.Float64() > nonDetectionRate

	var res TumourResult
	res.Detection.TumourDetected = detected

	if !detected {
		res.Detection.Confidence = g.uniform(0.1, 0.4)
		res.Risk = model.RiskAssessment{
			ProgressionRisk: model.RiskLow,
			RecurrenceRisk:  model.RiskLow,
			Score:           g.uniform(0, 20),
		}
		return res
	}

	res.Detection.Confidence = g.uniform(0.6, 1.0)
	res.Detection.Location = &model.Location{
		X: g.src.Intn(scanWidth),
		Y: g.src.Intn(scanHeight),
		Z: g.src.Intn(scanDepth),
	}
	res.Detection.Size = &model.TumourSize{
		Volume: g.uniform(1000, 51000),
		Dimensions: model.Dimensions{
			Length: g.uniform(10, 60),
			Width:  g.uniform(10, 60),
			Height: g.uniform(10, 60),
		},
	}
	res.Phenotype = &model.Phenotype{
		Shape:         g.pick(model.Shapes),
		Texture:       g.pick(model.Textures),
		Intensity:     g.src.Float64(),
		Heterogeneity: g.src.Float64(),
		Enhancement:   g.pick(model.Enhancements),
	}
	res.Classification = &model.Classification{
		Type:       g.pick(model.TumourTypes),
		Grade:      g.pick(model.TumourGrades),
		Malignancy: g.pick(model.Malignancies),
	}
	res.Risk = model.RiskAssessment{
		ProgressionRisk: g.riskLevel(),
		RecurrenceRisk:  g.riskLevel(),
		Score:           g.uniform(30, 100),
	}
	return res
}

// uniform draws from [lo, hi).
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.src.Float64()*(hi-lo)
}

func (g *Generator) pick(options []string) string {
	return options[g.src.Intn(len(options))]
}

func (g *Generator) riskLevel() model.RiskLevel {
	r := g.src.Float64()
	switch {
	case r < 0.33:
		return model.RiskLow
	case r < 0.66:
		return model.RiskModerate
	default:
		return model.RiskHigh
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
