package normalize

import (
	"regexp"
	"strings"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

type label struct {
	name  string
	terms *regexp.Regexp
}

func wordsRe(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

var (
	needRe = wordsRe(`financial need`, `need[- ]based`, `low[- ]income`, `pell`, `fafsa`,
		`economic hardship`, `financial hardship`, `underserved`)
	meritRe = wordsRe(`merit`, `merit[- ]based`, `gpa`, `academic excellence`, `academic achievement`,
		`honou?rs?`, `outstanding`, `leadership`, `talent(?:s|ed)?`, `top students`, `achievements?`)
)

// Vocabulary order is the order labels appear in the output.
var ethnicityLabels = []label{
	{"African American", wordsRe(`african[- ]american`, `black`)},
	{"Hispanic/Latino", wordsRe(`hispanic`, `latin[oax]`, `latine`, `chican[oa]`)},
	{"Asian American", wordsRe(`asian`)},
	{"Native American", wordsRe(`native american`, `american indian`, `alaska native`, `indigenous`, `tribal`)},
	{"Pacific Islander", wordsRe(`pacific islander`, `native hawaiian`)},
	{"Minority", wordsRe(`minority`, `minorities`, `underrepresented`)},
}

var (
	femaleRe    = wordsRe(`women`, `woman`, `female`, `females`, `girls?`)
	maleRe      = wordsRe(`men`, `man`, `male`, `males`, `boys?`)
	nonbinaryRe = wordsRe(`non-binary`, `nonbinary`, `lgbtq\+?`, `transgender`)
)

// InferTargetType classifies text as need-based, merit-based, or both.
// No signal, or signals for both, yields "both".
func InferTargetType(text string) string {
	need, merit := needRe.MatchString(text), meritRe.MatchString(text)
	switch {
	case need && !merit:
		return model.TargetNeed
	case merit && !need:
		return model.TargetMerit
	default:
		return model.TargetBoth
	}
}

// InferEthnicity returns the comma-joined ethnicity labels mentioned in text,
// or "unspecified".
func InferEthnicity(text string) string {
	var found []string
	for _, lbl := range ethnicityLabels {
		if lbl.terms.MatchString(text) {
			found = append(found, lbl.name)
		}
	}
	if len(found) == 0 {
		return model.Unspecified
	}
	return strings.Join(found, ", ")
}

// InferGender returns "female", "male" or "nonbinary" when text targets a
// single group, otherwise "unspecified".
func InferGender(text string) string {
	female, male, nb := femaleRe.MatchString(text), maleRe.MatchString(text), nonbinaryRe.MatchString(text)
	switch {
	case nb && !female && !male:
		return "nonbinary"
	case female && !male && !nb:
		return "female"
	case male && !female && !nb:
		return "male"
	default:
		return model.Unspecified
	}
}
