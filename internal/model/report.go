package model

import (
	"math"
	"time"
)

// AnalysisResult is the complete output of one pipeline invocation.
// The JSON layout is the wire format consumed by the charting frontend.
type AnalysisResult struct {
	Metadata        Metadata        `json:"metadata"`        // Run-level statistics
	TaxonomySummary []TaxonomyCount `json:"taxonomySummary"` // Group counts, descending
	Sequences       []SequenceView  `json:"sequences"`       // One entry per emitted record, input order
	ClusterData     []ClusterEntry  `json:"clusterData"`     // One entry per distinct cluster id
}

// Metadata summarises a run
type Metadata struct {
	SampleName            string       `json:"sampleName"`            // Display name supplied by the caller
	TotalSequences        int          `json:"totalSequences"`        // Number of records classified
	AvgConfidencePercent  int          `json:"avgConfidencePercent"`  // round(mean(confidence) * 100)
	NovelSequenceCount    int          `json:"novelSequenceCount"`    // Records flagged potentially novel
	ProcessingTimeSeconds float64      `json:"processingTimeSeconds"` // Assigned by whoever timed the run
	LengthStats           *LengthStats `json:"lengthStats,omitempty"` // Optional sequence length distribution
}

// LengthStats describes the distribution of record lengths in a run
type LengthStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// TaxonomyCount is one slice of the taxonomy pie chart
type TaxonomyCount struct {
	Name  TaxonomyGroup `json:"name"`
	Value int           `json:"value"`
	Color string        `json:"color"`
}

// SequenceView is the per-record row combining the parsed record,
// its classification and its cluster assignment.
type SequenceView struct {
	Accession    string     `json:"accession"`
	Taxonomy     string     `json:"taxonomy"`     // Full lineage string
	Length       int        `json:"length"`       // Valid nucleotide count
	Confidence   float64    `json:"confidence"`   // [0,1]
	Overlap      int        `json:"overlap"`      // Reference overlap percent [0,100]
	Cluster      string     `json:"cluster"`      // Cluster id, e.g. "C4" or "N2"
	NoveltyScore float64    `json:"noveltyScore"` // [0,1]
	Status       StatusFlag `json:"status"`
}

// ClusterEntry is one point of the cluster scatter plot.
// Z is the member count of the bucket, not a spatial coordinate.
type ClusterEntry struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       int     `json:"z"`
	Cluster string  `json:"cluster"` // Display group name
	Color   string  `json:"color"`
}

// SetProcessingTime records the wall-clock duration of a run, in seconds
// rounded to two decimals
func (m *Metadata) SetProcessingTime(d time.Duration) {
	m.ProcessingTimeSeconds = math.Round(d.Seconds()*100) / 100
}
