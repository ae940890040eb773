package classify

import "sort"

// Similarity scores two strings in [0,1] as 2*M/T, where M is the total size
// of the longest matching blocks and T the combined length.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	matched := matchingTotal(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

func matchingTotal(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingTotal(a[:ai], b[:bi]) + matchingTotal(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest common substring, preferring the earliest
// position on ties.
func longestMatch(a, b string) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] == b[j] {
				cur[j+1] = prev[j] + 1
				if cur[j+1] > size {
					size = cur[j+1]
					ai = i - size + 1
					bi = j - size + 1
				}
			} else {
				cur[j+1] = 0
			}
		}
		prev, cur = cur, prev
		for k := range cur {
			cur[k] = 0
		}
	}
	return ai, bi, size
}

// CloseMatches returns up to n candidates scoring at least cutoff against
// word, best match first. Ties keep candidate order.
func CloseMatches(word string, candidates []string, n int, cutoff float64) []string {
	type scored struct {
		value string
		score float64
	}
	matches := make([]scored, 0, len(candidates))
	for _, cand := range candidates {
		if score := Similarity(word, cand); score >= cutoff {
			matches = append(matches, scored{cand, score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > n {
		matches = matches[:n]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}
