package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/taxaformer/internal/model"
)

func TestGroup(t *testing.T) {
	tests := []struct {
		name    string
		lineage string
		status  model.StatusFlag
		want    model.TaxonomyGroup
	}{
		{"metazoa before later bacteria token", "Eukaryota;Amorphea;Metazoa;Bacteria", model.StatusKnown, model.GroupMetazoa},
		{"animalia synonym", "Eukaryota;Animalia;Chordata", model.StatusKnown, model.GroupMetazoa},
		{"first matching token wins", "Bacteria;Proteobacteria;Metazoa", model.StatusKnown, model.GroupBacteria},
		{"priority within one token", "Fungi-Metazoa", model.StatusKnown, model.GroupMetazoa},
		{"alveolata", "Eukaryota;Diaphoretickes;SAR;Alveolata;Dinoflagellata", model.StatusKnown, model.GroupAlveolata},
		{"dinoflagellata synonym", "Eukaryota;Dinoflagellata", model.StatusKnown, model.GroupAlveolata},
		{"chlorophyta", "Eukaryota;Archaeplastida;Chlorophyta;Chlorophyceae", model.StatusKnown, model.GroupChlorophyta},
		{"fungi", "Eukaryota;Opisthokonta;Nucletmycea;Fungi;Basidiomycota", model.StatusKnown, model.GroupFungi},
		{"rhodophyta", "Eukaryota;Archaeplastida;Rhodophyta", model.StatusKnown, model.GroupRhodophyta},
		{"stramenopiles", "Eukaryota;SAR;Stramenopiles;Bacillariophyta", model.StatusKnown, model.GroupStramenopiles},
		{"archaea", "Archaea;Euryarchaeota", model.StatusKnown, model.GroupArchaea},
		{"no marker", "Eukaryota;Cryptophyceae", model.StatusKnown, model.GroupUnknown},
		{"empty lineage", "", model.StatusKnown, model.GroupUnknown},
		{"tokens are trimmed", " Eukaryota ; Fungi ", model.StatusKnown, model.GroupFungi},
		{"novel overrides lineage", "Eukaryota;Metazoa", model.StatusPotentiallyNovel, model.GroupNovel},
		{"novel overrides unknown", "", model.StatusPotentiallyNovel, model.GroupNovel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Group(tt.lineage, tt.status))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, model.StatusKnown, Status(0.1499, 0.15))
	assert.Equal(t, model.StatusPotentiallyNovel, Status(0.15, 0.15))
	assert.Equal(t, model.StatusPotentiallyNovel, Status(0.25, 0.15))
	assert.Equal(t, model.StatusKnown, Status(0.5, 0.6))
	assert.Equal(t, model.StatusPotentiallyNovel, Status(0, 0))
}
