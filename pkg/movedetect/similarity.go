package movedetect

import "github.com/0xmhha/pathwatch/pkg/pathkey"

// nameSimilarity scores two paths' base names in [0,1], using Levenshtein
// distance normalized by the longer name's length, per SPEC_FULL §B.3's
// resolution of spec §4.3's unspecified "name_similarity ∈ [0,1]".
func nameSimilarity(pathA, pathB string) float64 {
	a, b := pathkey.BaseName(pathA), pathkey.BaseName(pathB)
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshteinDistance(a, b)
	sim := 1 - float64(dist)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return sim
}

// levenshteinDistance computes the classic edit distance between a and b
// using a single-row dynamic-programming pass, mirroring the original
// implementation's move_detector.rs::levenshtein_distance.
func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
