package classify

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ppiankov/taxaformer/internal/model"
)

// stubLineages are the lineages the stub draws from. They cover every
// chart group except Unknown, plus one lineage that maps to Unknown.
var stubLineages = []string{
	"Eukaryota;Amorphea;Obazoa;Opisthokonta;Holozoa;Choanozoa;Metazoa;Animalia",
	"Eukaryota;Diaphoretickes;SAR;Alveolata;Dinoflagellata",
	"Eukaryota;Diaphoretickes;Archaeplastida;Chlorophyta;Chlorophyceae",
	"Eukaryota;Amorphea;Obazoa;Opisthokonta;Nucletmycea;Fungi;Basidiomycota",
	"Eukaryota;Diaphoretickes;Archaeplastida;Rhodophyta",
	"Eukaryota;Diaphoretickes;SAR;Stramenopiles;Bacillariophyta",
	"Eukaryota;Cryptophyceae",
	"Bacteria;Proteobacteria",
	"Bacteria;Bacteroidetes",
	"Archaea;Euryarchaeota",
}

// Stub is a randomized classifier used for demos and tests.
// It is safe for concurrent use.
type Stub struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a PCG-backed random source. A zero seed is time-seeded.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// NewStub creates a stub classifier drawing from rng
func NewStub(rng *rand.Rand) *Stub {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Stub{rng: rng}
}

// Name returns the provider name
func (s *Stub) Name() string {
	return "stub"
}

// IsAvailable always reports true
func (s *Stub) IsAvailable(ctx context.Context) bool {
	return true
}

// Classify draws a random lineage and scores. The record content is ignored.
func (s *Stub) Classify(ctx context.Context, rec model.SequenceRecord) (model.Classification, error) {
	if err := ctx.Err(); err != nil {
		return model.Classification{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return model.Classification{
		Lineage:        stubLineages[s.rng.IntN(len(stubLineages))],
		Confidence:     roundTo(uniform(s.rng, 0.75, 0.99), 3),
		OverlapPercent: 70 + s.rng.IntN(30),
		NoveltyScore:   roundTo(uniform(s.rng, 0.05, 0.25), 4),
	}, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
