package model

import (
	"fmt"
	"math"
)

// SequenceRecord is one parsed FASTA/FASTQ record
type SequenceRecord struct {
	ID       string // First whitespace token of the header line
	Sequence string // Concatenated nucleotide lines
}

// Length returns the number of nucleotide characters in the record
func (r SequenceRecord) Length() int {
	return len(r.Sequence)
}

// Classification is the classifier's verdict for one record
type Classification struct {
	Lineage        string  `json:"lineage"`       // Semicolon-delimited hierarchy
	Confidence     float64 `json:"confidence"`    // [0,1]
	OverlapPercent int     `json:"overlap"`       // [0,100]
	NoveltyScore   float64 `json:"novelty_score"` // [0,1]
}

// Validate checks that all scores are finite and inside their documented ranges
func (c Classification) Validate() error {
	if !inUnitInterval(c.Confidence) {
		return fmt.Errorf("confidence %v outside [0,1]", c.Confidence)
	}
	if c.OverlapPercent < 0 || c.OverlapPercent > 100 {
		return fmt.Errorf("overlap %d outside [0,100]", c.OverlapPercent)
	}
	if !inUnitInterval(c.NoveltyScore) {
		return fmt.Errorf("novelty score %v outside [0,1]", c.NoveltyScore)
	}
	return nil
}

// inUnitInterval is false for NaN, which fails every ordered comparison
func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// StatusFlag is the binary novelty verdict derived from a novelty score
type StatusFlag string

const (
	StatusKnown            StatusFlag = "Known"
	StatusPotentiallyNovel StatusFlag = "POTENTIALLY NOVEL"
)

// IsNovel reports whether the flag marks a potentially novel record
func (s StatusFlag) IsNovel() bool {
	return s == StatusPotentiallyNovel
}

// TaxonomyGroup is one of the fixed top-level buckets used for charting
type TaxonomyGroup string

const (
	GroupAlveolata     TaxonomyGroup = "Alveolata"
	GroupChlorophyta   TaxonomyGroup = "Chlorophyta"
	GroupFungi         TaxonomyGroup = "Fungi"
	GroupMetazoa       TaxonomyGroup = "Metazoa"
	GroupRhodophyta    TaxonomyGroup = "Rhodophyta"
	GroupStramenopiles TaxonomyGroup = "Stramenopiles"
	GroupBacteria      TaxonomyGroup = "Bacteria"
	GroupArchaea       TaxonomyGroup = "Archaea"
	GroupUnknown       TaxonomyGroup = "Unknown"
	GroupNovel         TaxonomyGroup = "Novel"
)

// AllGroups returns every taxonomy group in declaration order
func AllGroups() []TaxonomyGroup {
	return []TaxonomyGroup{
		GroupAlveolata,
		GroupChlorophyta,
		GroupFungi,
		GroupMetazoa,
		GroupRhodophyta,
		GroupStramenopiles,
		GroupBacteria,
		GroupArchaea,
		GroupUnknown,
		GroupNovel,
	}
}
