package recognize

// Partial-match acceptance thresholds. Short inputs carry little signal, so
// they must clear a higher bar; the bar relaxes linearly between input
// lengths 3 and 6 (in runes).
const (
	shortInputLen       = 3
	longInputLen        = 6
	shortInputThreshold = 0.75
	longInputThreshold  = 0.55
)

// partialThreshold returns the acceptance threshold for an input of the
// given rune length, interpolated between the short and long anchors.
func partialThreshold(inputLen int) float64 {
	if inputLen <= shortInputLen {
		return shortInputThreshold
	}
	if inputLen >= longInputLen {
		return longInputThreshold
	}
	span := float64(longInputLen - shortInputLen)
	frac := float64(inputLen-shortInputLen) / span
	return shortInputThreshold - frac*(shortInputThreshold-longInputThreshold)
}

// similarity scores how strongly the normalized input refers to the
// normalized merchant name: the mean of a character-containment ratio
// (name runes present in the input) and a longest-common-substring ratio,
// both relative to the name's length.
func similarity(input, name string) float64 {
	nameRunes := []rune(name)
	if len(nameRunes) == 0 {
		return 0
	}

	inputSet := make(map[rune]int)
	for _, r := range input {
		inputSet[r]++
	}
	contained := 0
	for _, r := range nameRunes {
		if inputSet[r] > 0 {
			inputSet[r]--
			contained++
		}
	}
	containment := float64(contained) / float64(len(nameRunes))

	lcs := longestCommonSubstring([]rune(input), nameRunes)
	lcsRatio := float64(lcs) / float64(len(nameRunes))

	return (containment + lcsRatio) / 2
}

// longestCommonSubstring returns the length of the longest contiguous run of
// runes shared by a and b.
func longestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}
