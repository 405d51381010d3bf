package command

// Similarity scores two strings in [0,1] as twice the number of matched
// characters over the combined length, where matches are found by repeatedly
// taking the longest common block and recursing on both sides of it.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchedRunes(ra, rb)) / float64(total)
}

func matchedRunes(a, b []rune) int {
	i, j, k := longestBlock(a, b)
	if k == 0 {
		return 0
	}
	return k + matchedRunes(a[:i], b[:j]) + matchedRunes(a[i+k:], b[j+k:])
}

// longestBlock returns the earliest longest common substring of a and b as
// start offsets and a length.
func longestBlock(a, b []rune) (int, int, int) {
	var bestI, bestJ, best int
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			cur[j+1] = prev[j] + 1
			if cur[j+1] > best {
				best = cur[j+1]
				bestI = i - best + 1
				bestJ = j - best + 1
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, best
}
