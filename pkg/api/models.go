package api

import (
	"time"

	"github.com/google/uuid"
)

// Output field kinds understood by the TCAV panel.
const (
	KindGradients       = "Gradients"
	KindMulticlassPreds = "MulticlassPreds"
	KindEmbeddings      = "Embeddings"
)

type FieldSpec struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Vocab []string `json:"vocab,omitempty"`
}

// ModelSpec is the capability descriptor of a served model. Output fields keep
// the order the model declares them in.
type ModelSpec struct {
	Model  string      `json:"model"`
	Input  []FieldSpec `json:"input,omitempty"`
	Output []FieldSpec `json:"output"`
}

type IndexedInput struct {
	Id   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

type TCAVConfig struct {
	ConceptSetIds  []string `json:"concept_set_ids"`
	ClassToExplain string   `json:"class_to_explain"`
	GradLayer      string   `json:"grad_layer"`
}

type InterpretRequest struct {
	Inputs      []IndexedInput `json:"inputs"`
	Model       string         `json:"-"`
	Dataset     string         `json:"-"`
	Method      string         `json:"-"`
	Config      TCAVConfig     `json:"config"`
	Description string         `json:"-"`
}

type TCAVScore struct {
	Score    float64   `json:"score"`
	CosSim   []float64 `json:"cos_sim,omitempty"`
	DotProds []float64 `json:"dot_prods,omitempty"`
	Accuracy float64   `json:"accuracy"`
}

type TCAVResult struct {
	PValue     float64   `json:"p_val"`
	RandomMean float64   `json:"random_mean"`
	Result     TCAVScore `json:"result"`
}

type Selection struct {
	Subset string `json:"subset"`
	Layer  string `json:"layer"`
	Class  string `json:"class"`
}

type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type ScoreSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// PanelView is the read-only snapshot handed to the rendering layer.
type PanelView struct {
	Model     string    `json:"model"`
	Dataset   string    `json:"dataset"`
	Selection Selection `json:"selection"`

	Subsets            []string `json:"subsets"`
	GradientLayers     []string `json:"gradient_layers"`
	PredictableClasses []string `json:"predictable_classes"`

	CanRun   bool               `json:"can_run"`
	Loading  bool               `json:"loading"`
	Progress Progress           `json:"progress"`
	Scores   map[string]float64 `json:"scores"`
	Summary  ScoreSummary       `json:"summary"`

	Width  int `json:"width"`
	Height int `json:"height"`
}

type Subset struct {
	Id           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Members      []string  `json:"members"`
	CreationTime time.Time `json:"creation_time"`
}

type CreateSubsetRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type ListSubsetsParams struct {
	MinSize int `schema:"min_size"`
}

type SetStateRequest struct {
	Model   string `json:"model"`
	Dataset string `json:"dataset"`
}

type AvailabilityResponse struct {
	Model     string `json:"model"`
	Available bool   `json:"available"`
}
