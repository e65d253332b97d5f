package domain

// NationalGeoID is the LED geography code for the whole United States.
const NationalGeoID = "00"

type SelectedAreas struct {
	GeoIDs []string `json:"geo_ids"`
}

type FirmAttributes struct {
	NAICSLevel    string   `json:"naics_level"`
	SelectedNAICS []string `json:"selected_naics"`
	Ownership     string   `json:"ownership"`
	FAS           string   `json:"fas"`
	FirmAge       []string `json:"firm_age"`
	FirmSize      []string `json:"firm_size"`
}

type WorkerAttributes struct {
	Group string   `json:"group"`
	Attr1 []string `json:"attr1"`
	Attr2 []string `json:"attr2"`
}

// JobDescriptor mirrors the settings file the QWI extraction form saves and loads.
type JobDescriptor struct {
	SelectedAreas    SelectedAreas    `json:"selected_areas"`
	FirmAttributes   FirmAttributes   `json:"firm_attributes"`
	WorkerAttributes WorkerAttributes `json:"worker_attributes"`
	Indicators       []string         `json:"indicators"`
	Quarters         []string         `json:"quarters"`
	ExportLabels     bool             `json:"export_labels"`
	WorkerXing       string           `json:"worker_xing"`
}

// NewDescriptor fills in the fixed firm/worker filters used by every export.
func NewDescriptor(geoIDs, quarters []string) JobDescriptor {
	return JobDescriptor{
		SelectedAreas: SelectedAreas{GeoIDs: geoIDs},
		FirmAttributes: FirmAttributes{
			NAICSLevel:    "naics2",
			SelectedNAICS: []string{"00"},
			Ownership:     "op",
			FAS:           "fa",
			FirmAge:       []string{"0", "1", "2", "3"},
			FirmSize:      []string{"0"},
		},
		WorkerAttributes: WorkerAttributes{
			Group: "se",
			Attr1: []string{"0"},
			Attr2: []string{"E0", "E1", "E2", "E3", "E4"},
		},
		Indicators:   []string{"Emp"},
		Quarters:     quarters,
		ExportLabels: true,
		WorkerXing:   "se",
	}
}
