// Package cluster groups near-duplicate titles by character-trigram Jaccard
// similarity. The pairwise comparison is O(n²) and meant for page-sized
// input (tens to low hundreds of titles), never a whole corpus.
package cluster

import "sort"

// Trigrams returns the set of character-level 3-grams of s. Strings shorter
// than three characters yield the whole string as a single token; the empty
// string yields the empty set. Character-level so it behaves uniformly for
// ideographic and Latin text.
func Trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) < 3 {
		if len(runes) > 0 {
			set[string(runes)] = struct{}{}
		}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard index of the two titles' trigram sets.
// Two titles that both produce empty sets are similar with score 1.0.
func Similarity(a, b string) float64 {
	ta := Trigrams(a)
	tb := Trigrams(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}

	intersection := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// Group partitions title indices into connected components under
// Similarity >= threshold, using union-find over all pairs. Every index
// appears in exactly one group; groups are ordered by their lowest member
// and members within a group are ascending.
func Group(titles []string, threshold float64) [][]int {
	n := len(titles)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(i int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if Similarity(titles[i], titles[j]) >= threshold {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		root := find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	groups := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, members)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return groups
}
