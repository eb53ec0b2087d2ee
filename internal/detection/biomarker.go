package detection

import "tumourscan/internal/model"

// catalogueEntry is one biomarker the simulator reports. Everything except value and confidence is static.
type catalogueEntry struct {
	name         string
	category     model.BiomarkerCategory
	significance string
	genes        []string
	relevance    string
	method       string
	value        func(g *Generator) model.BiomarkerValue
	confLo       float64
	confHi       float64
}

func boolAbove(threshold float64) func(g *Generator) model.BiomarkerValue {
	return func(g *Generator) model.BiomarkerValue {
		return model.BoolValue(g.src.Float64() > threshold)
	}
}

func index(upper float64, places int) func(g *Generator) model.BiomarkerValue {
	return func(g *Generator) model.BiomarkerValue {
		return model.NumberValue(round(g.src.Float64()*upper, places))
	}
}

var catalogue = []catalogueEntry{
	{
		name:         "IDH1 mutation",
		category:     model.CategoryGenetic,
		significance: "Prognostic marker for gliomas",
		genes:        []string{"IDH1"},
		relevance:    "Better prognosis in IDH1-mutant tumours",
		method:       "Imaging-based inference",
		value:        boolAbove(0.5),
		confLo:       0.7,
		confHi:       1.0,
	},
	{
		name:         "MGMT methylation",
		category:     model.CategoryGenetic,
		significance: "Predictive marker for temozolomide response",
		genes:        []string{"MGMT"},
		relevance:    "Predicts response to alkylating agents",
		method:       "Radiogenomic analysis",
		value:        boolAbove(0.5),
		confLo:       0.7,
		confHi:       1.0,
	},
	{
		name:         "EGFR amplification",
		category:     model.CategoryGenetic,
		significance: "Common in glioblastoma",
		genes:        []string{"EGFR"},
		relevance:    "Potential therapeutic target",
		method:       "Texture and enhancement patterns",
		value:        boolAbove(0.6),
		confLo:       0.7,
		confHi:       1.0,
	},
	{
		name:         "Perfusion index",
		category:     model.CategoryImaging,
		significance: "Indicates tumour vascularity",
		genes:        []string{},
		relevance:    "Higher values suggest more aggressive tumours",
		method:       "DSC-MRI analysis",
		value:        index(100, 2),
		confLo:       0.8,
		confHi:       1.0,
	},
	{
		name:         "Ki-67 index",
		category:     model.CategoryProtein,
		significance: "Cell proliferation marker",
		genes:        []string{"MKI67"},
		relevance:    "Higher values indicate faster growing tumours",
		method:       "Texture analysis",
		value:        index(40, 1),
		confLo:       0.7,
		confHi:       0.95,
	},
}

// BiomarkerNames lists the catalogue in emission order.
func BiomarkerNames() []string {
	names := make([]string, len(catalogue))
	for i, entry := range catalogue {
		names[i] = entry.name
	}
	return names
}

// Biomarkers samples the fixed catalogue. The result is not linked to any analysis
// and carries no ids; the caller assigns both when persisting.
func (g *Generator) Biomarkers() []model.Biomarker {
	out := make([]model.Biomarker, 0, len(catalogue))
	for _, entry := range catalogue {
		genes := make([]string, len(entry.genes))
		copy(genes, entry.genes)

		b := model.Biomarker{
			Name:              entry.name,
			Category:          entry.category,
			Significance:      entry.significance,
			AssociatedGenes:   genes,
			ClinicalRelevance: entry.relevance,
			DetectionMethod:   entry.method,
		}
		b.Value = entry.value(g)
		b.Confidence = g.uniform(entry.confLo, entry.confHi)
		out = append(out, b)
	}
	return out
}
