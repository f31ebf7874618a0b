// Package normalize turns raw adapter output into canonical scholarship
// records. Every function here is pure and deterministic.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", "USD", "", "usd", "", ",", "")

// CleanAmount extracts the first number from free-form amount text such as
// "$5,000" or "Up to $10,000 per year". A trailing "k" multiplies by 1000.
// Unparseable text yields 0; the result is never negative.
func CleanAmount(s string) float64 {
	nums := amounts(s)
	if len(nums) == 0 {
		return 0
	}
	return nums[0]
}

// AmountRange extracts a (min, max) pair from text like "$1,000 - $5,000".
// A single number is returned as both bounds.
func AmountRange(s string) (minAward, maxAward float64) {
	nums := amounts(s)
	switch len(nums) {
	case 0:
		return 0, 0
	case 1:
		return nums[0], nums[0]
	}
	minAward, maxAward = nums[0], nums[1]
	if minAward > maxAward {
		minAward, maxAward = maxAward, minAward
	}
	return minAward, maxAward
}

func amounts(s string) []float64 {
	cleaned := currencyReplacer.Replace(s)
	locs := numberRe.FindAllStringIndex(cleaned, -1)
	out := make([]float64, 0, len(locs))
	for _, loc := range locs {
		v, err := strconv.ParseFloat(cleaned[loc[0]:loc[1]], 64)
		if err != nil {
			continue
		}
		if loc[1] < len(cleaned) && (cleaned[loc[1]] == 'k' || cleaned[loc[1]] == 'K') {
			v *= 1000
		}
		out = append(out, v)
	}
	return out
}
