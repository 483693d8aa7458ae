package ranking

import (
	"sort"
	"strings"

	"github.com/hyperjump/nursesim/internal/models"
)

// MergeRankings combines the rankings of several query variants. When a disease
// appears under more than one variant, Similar keeps the entry with the higher
// similarity and Keyword the entry with more occurrences (ties go to the other
// measure). Similar is re-sorted by similarity and Keyword by occurrences, then
// Keyword is capped at topN when topN > 0.
func MergeRankings(topN int, rankings ...*Ranking) *Ranking {
	out := &Ranking{
		Similar: []*models.RankedDisease{},
		Keyword: []*models.RankedDisease{},
	}
	similarAt := map[string]int{}
	keywordAt := map[string]int{}
	for _, r := range rankings {
		if r == nil {
			continue
		}
		out.Similar = mergeInto(out.Similar, similarAt, r.Similar, moreSimilar)
		out.Keyword = mergeInto(out.Keyword, keywordAt, r.Keyword, moreOccurrences)
	}
	if len(rankings) > 1 {
		sort.SliceStable(out.Similar, func(i, j int) bool {
			return out.Similar[i].Similarity > out.Similar[j].Similarity
		})
		sort.SliceStable(out.Keyword, func(i, j int) bool {
			return out.Keyword[i].Occurrences > out.Keyword[j].Occurrences
		})
	}
	if topN > 0 && len(out.Keyword) > topN {
		out.Keyword = out.Keyword[:topN]
	}
	return out
}

// mergeInto appends entries with unseen IDs to dst and replaces a seen entry
// in place when better reports the new one as stronger.
func mergeInto(dst []*models.RankedDisease, at map[string]int, entries []*models.RankedDisease,
	better func(a, b *models.RankedDisease) bool) []*models.RankedDisease {
	for _, rd := range entries {
		i, ok := at[rd.Disease.ID]
		if !ok {
			at[rd.Disease.ID] = len(dst)
			dst = append(dst, rd)
			continue
		}
		if better(rd, dst[i]) {
			dst[i] = rd
		}
	}
	return dst
}

func moreSimilar(a, b *models.RankedDisease) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.Occurrences > b.Occurrences
}

func moreOccurrences(a, b *models.RankedDisease) bool {
	if a.Occurrences != b.Occurrences {
		return a.Occurrences > b.Occurrences
	}
	return a.Similarity > b.Similarity
}

// SplitByTitle returns the entries whose title contains any of queries, case-insensitively,
// preserving order.
func SplitByTitle(ranked []*models.RankedDisease, queries ...string) []*models.RankedDisease {
	needles := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
			needles = append(needles, q)
		}
	}
	out := []*models.RankedDisease{}
	for _, rd := range ranked {
		title := strings.ToLower(rd.Disease.Title)
		for _, n := range needles {
			if strings.Contains(title, n) {
				out = append(out, rd)
				break
			}
		}
	}
	return out
}
