// Package cluster buckets records into visualization clusters.
//
// An Assigner is scoped to a single run. It must not be shared between
// concurrent runs or reused after the run completes.
package cluster

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/ppiankov/taxaformer/internal/model"
)

const (
	knownBuckets = 10
	novelBuckets = 3
	spread       = 20.0 // positions are drawn from [-spread, spread]
)

// ColorFunc resolves the display color of a group
type ColorFunc func(model.TaxonomyGroup) string

// Assigner maps records to cluster ids and accumulates one entry per id
type Assigner struct {
	colorFor ColorFunc
	rng      *rand.Rand
	index    map[string]int // cluster id -> position in entries
	entries  []model.ClusterEntry
}

// NewAssigner creates an empty per-run assigner
func NewAssigner(colorFor ColorFunc, rng *rand.Rand) *Assigner {
	return &Assigner{
		colorFor: colorFor,
		rng:      rng,
		index:    make(map[string]int),
	}
}

// ClusterID computes the bucket id for a record. Known records are bucketed
// by a stable hash of their group; novel records rotate over three buckets
// by input position.
func ClusterID(recordIndex int, group model.TaxonomyGroup, status model.StatusFlag) string {
	if status.IsNovel() {
		return fmt.Sprintf("N%d", recordIndex%novelBuckets+1)
	}
	return fmt.Sprintf("C%d", StableHash(string(group))%knownBuckets+1)
}

// StableHash is FNV-1a over the group name; it does not vary between
// processes or runs.
func StableHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Assign returns the record's cluster id, creating the cluster entry on
// first sight and bumping its member count otherwise.
func (a *Assigner) Assign(recordIndex int, group model.TaxonomyGroup, status model.StatusFlag) string {
	id := ClusterID(recordIndex, group, status)

	if i, ok := a.index[id]; ok {
		a.entries[i].Z++
		return id
	}

	// Colliding known groups share a bucket; the first group seen names it.
	a.index[id] = len(a.entries)
	a.entries = append(a.entries, model.ClusterEntry{
		X:       a.coordinate(),
		Y:       a.coordinate(),
		Z:       1,
		Cluster: string(group),
		Color:   a.colorFor(group),
	})
	return id
}

// Entries returns the cluster entries in order of first appearance
func (a *Assigner) Entries() []model.ClusterEntry {
	out := make([]model.ClusterEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of distinct cluster ids seen
func (a *Assigner) Len() int {
	return len(a.entries)
}

func (a *Assigner) coordinate() float64 {
	v := a.rng.Float64()*2*spread - spread
	return math.Round(v*100) / 100
}
