package index

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Result is one search hit.
type Result struct {
	FileID string  `json:"fileId"`
	Entry  Entry   `json:"file"`
	Score  float64 `json:"score"`
}

// Search scores every entry against the query tokens: +1 when the entry has
// the token, +3 when its lowercase name or path contains it, and +0.5 for each
// case-insensitive occurrence in the content. Only positive scores are
// returned, best first.
func (ix *Index) Search(query string) []Result {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var results []Result
	for id, e := range ix.entries {
		name := strings.ToLower(e.Name)
		p := strings.ToLower(e.Path)
		content := strings.ToLower(e.Content)

		score := 0.0
		for _, tok := range tokens {
			if e.HasToken(tok) {
				score++
			}
			if strings.Contains(name, tok) || strings.Contains(p, tok) {
				score += 3
			}
			score += 0.5 * float64(strings.Count(content, tok))
		}
		if score > 0 {
			results = append(results, Result{FileID: id, Entry: *e, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.Path < results[j].Entry.Path
	})
	return results
}

// RecentChanges returns up to limit entries, most recently indexed first.
// A non-positive limit means 5.
func (ix *Index) RecentChanges(limit int) []Entry {
	if limit <= 0 {
		limit = 5
	}
	ix.mu.RLock()
	all := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		all = append(all, *e)
	}
	ix.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// pathSource adapts entries to fuzzy.Source.
type pathSource []Entry

func (s pathSource) String(i int) string { return s[i].Path }
func (s pathSource) Len() int            { return len(s) }

// Match is a quick-open hit.
type Match struct {
	FileID         string `json:"fileId"`
	Path           string `json:"path"`
	Score          int    `json:"score"`
	MatchedIndexes []int  `json:"matchedIndexes"`
}

// QuickOpen fuzzy-matches pattern against file paths. A blank pattern lists
// files by path.
func (ix *Index) QuickOpen(pattern string, limit int) []Match {
	ix.mu.RLock()
	src := make(pathSource, 0, len(ix.entries))
	for _, e := range ix.entries {
		src = append(src, *e)
	}
	ix.mu.RUnlock()
	sort.Slice(src, func(i, j int) bool { return src[i].Path < src[j].Path })

	var out []Match
	if strings.TrimSpace(pattern) == "" {
		for _, e := range src {
			out = append(out, Match{FileID: e.FileID, Path: e.Path})
		}
	} else {
		for _, m := range fuzzy.FindFrom(pattern, src) {
			e := src[m.Index]
			out = append(out, Match{FileID: e.FileID, Path: e.Path, Score: m.Score, MatchedIndexes: m.MatchedIndexes})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
