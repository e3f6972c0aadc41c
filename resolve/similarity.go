// ABOUTME: Jaro-Winkler string similarity used by the fuzzy resolution tier
// ABOUTME: Operates on runes so accented names compare correctly
package resolve

import "strings"

// JaroWinkler returns a similarity in [0, 1]; 1 means identical.
func JaroWinkler(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	j := jaro(ra, rb)
	if j == 0 {
		return 0
	}

	prefix := 0
	for i := 0; i < len(ra) && i < len(rb) && i < 4; i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for k := lo; k < hi; k++ {
			if bMatched[k] || a[i] != b[k] {
				continue
			}
			aMatched[i] = true
			bMatched[k] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}

// nameSimilarity is the best score of query against the full name, the
// first-name token and each alias. Inputs are already normalized.
func nameSimilarity(query, name string, aliases []string) float64 {
	best := JaroWinkler(query, name)
	if first, _, ok := strings.Cut(name, " "); ok {
		best = max(best, JaroWinkler(query, first))
	}
	for _, a := range aliases {
		best = max(best, JaroWinkler(query, a))
	}
	return best
}
