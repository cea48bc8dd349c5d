// Package taxonomy reduces lineage strings to canonical top-level groups.
package taxonomy

import (
	"strings"

	"github.com/ppiankov/taxaformer/internal/model"
)

// rule maps lineage markers to a group. Rules are tried in slice order for
// each token, so earlier rules win when a token carries several markers.
type rule struct {
	group   model.TaxonomyGroup
	markers []string
}

var rules = []rule{
	{model.GroupMetazoa, []string{"Metazoa", "Animalia"}},
	{model.GroupAlveolata, []string{"Alveolata", "Dinoflagellata"}},
	{model.GroupChlorophyta, []string{"Chlorophyta"}},
	{model.GroupFungi, []string{"Fungi"}},
	{model.GroupRhodophyta, []string{"Rhodophyta"}},
	{model.GroupStramenopiles, []string{"Stramenopiles"}},
	{model.GroupBacteria, []string{"Bacteria"}},
	{model.GroupArchaea, []string{"Archaea"}},
}

// Status thresholds a novelty score
func Status(noveltyScore, threshold float64) model.StatusFlag {
	if noveltyScore >= threshold {
		return model.StatusPotentiallyNovel
	}
	return model.StatusKnown
}

// Group returns the canonical group for a lineage. The first token (left to
// right) that contains any marker decides; potentially novel records are
// always grouped as Novel.
func Group(lineage string, status model.StatusFlag) model.TaxonomyGroup {
	if status.IsNovel() {
		return model.GroupNovel
	}
	return LineageGroup(lineage)
}

// LineageGroup classifies a lineage ignoring novelty
func LineageGroup(lineage string) model.TaxonomyGroup {
	for _, token := range strings.Split(lineage, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		for _, r := range rules {
			for _, m := range r.markers {
				if strings.Contains(token, m) {
					return r.group
				}
			}
		}
	}
	return model.GroupUnknown
}
