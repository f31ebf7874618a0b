package normalize_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
)

var fixedNow = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

// ── CleanAmount / AmountRange ────────────────────────────────────────────

func TestCleanAmount(t *testing.T) {
	cases := map[string]float64{
		"$5,000":                  5000,
		"Up to $10,000 per year":  10000,
		"$1,000 - $5,000":         1000,
		"€2.500":                  2.5,
		"2500.50 USD":             2500.5,
		"$5k":                     5000,
		"Varies":                  0,
		"":                        0,
		"-$300":                   300,
		"full tuition":            0,
		"$$$ ,,, not a number ..": 0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, normalize.CleanAmount(in), 1e-9, "CleanAmount(%q)", in)
	}
}

func TestCleanAmount_NeverNegativeOrPanics(t *testing.T) {
	for _, in := range []string{"-", "--5", "$-1,000", "1e9", "..", "k", "\x00\xff"} {
		assert.GreaterOrEqual(t, normalize.CleanAmount(in), 0.0, in)
	}
}

func TestAmountRange(t *testing.T) {
	lo, hi := normalize.AmountRange("$1,000 - $5,000")
	assert.Equal(t, 1000.0, lo)
	assert.Equal(t, 5000.0, hi)

	lo, hi = normalize.AmountRange("$2,500")
	assert.Equal(t, 2500.0, lo)
	assert.Equal(t, 2500.0, hi)

	lo, hi = normalize.AmountRange("between $900 and $300")
	assert.Equal(t, 300.0, lo)
	assert.Equal(t, 900.0, hi)
}

// ── FormatDeadline ───────────────────────────────────────────────────────

func TestFormatDeadline(t *testing.T) {
	cases := map[string]string{
		"March 15":            "March 15, 2026",
		"Mar 15":              "Mar 15, 2026",
		"Dec. 1st":            "Dec. 1st, 2026",
		"03/15":               "03/15/2026",
		"Deadline: April 30":  "April 30, 2026",
		"March 15, 2025":      "March 15, 2025",
		"12/31/2027":          "12/31/2027",
		"2026-11-01":          "2026-11-01",
		"Rolling":             "Rolling",
		"No deadline":         "No deadline",
		"  ":                  "",
		"13/45":               "13/45",
		"Due to funding cuts": "Due to funding cuts",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalize.FormatDeadline(in, fixedNow), "FormatDeadline(%q)", in)
	}
}

func TestIsRolling(t *testing.T) {
	assert.True(t, normalize.IsRolling("Rolling admissions"))
	assert.True(t, normalize.IsRolling("no deadline"))
	assert.False(t, normalize.IsRolling("March 1, 2026"))
}

// ── CleanText / Truncate ─────────────────────────────────────────────────

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", normalize.CleanText("  a \n\t b   c ", normalize.TextOptions{}))
	assert.Equal(t, "Smith Award", normalize.CleanText(`"Smith Award"`, normalize.TextOptions{StripQuotes: true}))
	assert.Equal(t, "1000", normalize.CleanText("$1,000", normalize.TextOptions{StripCommas: true, StripCurrency: true}))
}

func TestTruncate_UnchangedWhenShort(t *testing.T) {
	s := strings.Repeat("a", 100)
	assert.Equal(t, s, normalize.Truncate(s, 100))
	assert.Equal(t, "", normalize.Truncate("", 10))
}

func TestTruncate_RespectsCapAndMarker(t *testing.T) {
	inputs := []string{
		strings.Repeat("word ", 400),
		strings.Repeat("é", 700),
		strings.Repeat("奨学金", 300),
		strings.Repeat("🎓x", 250),
	}
	for _, max := range []int{4, 10, 500, 1000} {
		for _, in := range inputs {
			out := normalize.Truncate(in, max)
			assert.LessOrEqual(t, len(out), max)
			assert.True(t, utf8.ValidString(out), "invalid UTF-8 for max=%d", max)
			assert.True(t, strings.HasSuffix(out, normalize.Ellipsis), "missing marker for max=%d", max)
		}
	}
}

func TestTruncate_TinyCap(t *testing.T) {
	out := normalize.Truncate("abcdef", 2)
	assert.Equal(t, "ab", out)
}

// ── Inference ────────────────────────────────────────────────────────────

func TestInferTargetType(t *testing.T) {
	assert.Equal(t, model.TargetNeed, normalize.InferTargetType("For students with demonstrated financial need"))
	assert.Equal(t, model.TargetMerit, normalize.InferTargetType("Minimum GPA of 3.5 required"))
	assert.Equal(t, model.TargetBoth, normalize.InferTargetType("Based on merit and financial need"))
	assert.Equal(t, model.TargetBoth, normalize.InferTargetType("Open to all majors"))
	// vocabulary matches whole words only
	assert.Equal(t, model.TargetBoth, normalize.InferTargetType("National Spelling Bee Award"))
	assert.Equal(t, model.TargetNeed, normalize.InferTargetType("Reserved for Pell Grant recipients"))
	assert.Equal(t, model.TargetMerit, normalize.InferTargetType("Honors students with a talented portfolio"))
}

func TestInferEthnicity(t *testing.T) {
	assert.Equal(t, "Hispanic/Latino", normalize.InferEthnicity("Open to Latina students in Texas"))
	assert.Equal(t, "African American, Minority", normalize.InferEthnicity("for Black and other underrepresented students"))
	assert.Equal(t, model.Unspecified, normalize.InferEthnicity("Blackstone Foundation award"))
	assert.Equal(t, model.Unspecified, normalize.InferEthnicity(""))
}

func TestInferGender(t *testing.T) {
	assert.Equal(t, "female", normalize.InferGender("Supporting women in engineering"))
	assert.Equal(t, "male", normalize.InferGender("For young men pursuing nursing"))
	assert.Equal(t, "nonbinary", normalize.InferGender("LGBTQ+ student leaders"))
	assert.Equal(t, model.Unspecified, normalize.InferGender("Open to men and women"))
	assert.Equal(t, model.Unspecified, normalize.InferGender("Any student may apply"))
}

// ── Normalizer ───────────────────────────────────────────────────────────

func newNormalizer() *normalize.Normalizer {
	n := normalize.New(50, 30)
	n.Now = func() time.Time { return fixedNow }
	return n
}

func TestNormalize_CompletesRecord(t *testing.T) {
	n := newNormalizer()
	rec, warnings, err := n.Normalize(model.PartialRecord{
		Name:         `  "Future Leaders  Scholarship" `,
		Organization: "Acme Foundation",
		Description:  strings.Repeat("Awarded for academic excellence. ", 10),
		Eligibility:  "Women studying engineering",
		Deadline:     "March 15",
		Amount:       "$1,000 - $5,000",
		URL:          "https://example.org/s/1",
	}, normalize.Meta{Source: "example", JobID: "job-1"})

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "Future Leaders Scholarship", rec.Name)
	assert.Equal(t, "March 15, 2026", rec.Deadline)
	assert.Equal(t, 1000.0, rec.MinAward)
	assert.Equal(t, 5000.0, rec.MaxAward)
	assert.LessOrEqual(t, len(rec.Description), 50)
	assert.Equal(t, model.TargetMerit, rec.TargetType)
	assert.Equal(t, "female", rec.Gender)
	assert.Equal(t, model.Unspecified, rec.Ethnicity)
	assert.Equal(t, "US", rec.Country)
	assert.Equal(t, rec.URL, rec.ApplyURL)
	assert.True(t, rec.Active)
	assert.Equal(t, "example", rec.Source)
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.NotEmpty(t, rec.ID)
}

func TestNormalize_SameInputSameID(t *testing.T) {
	n := newNormalizer()
	p := model.PartialRecord{Name: "Smith Award", Organization: "Smith Trust", Deadline: "2026-05-01"}
	a, _, err := n.Normalize(p, normalize.Meta{Source: "a"})
	require.NoError(t, err)
	b, _, err := n.Normalize(p, normalize.Meta{Source: "b", JobID: "other"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestNormalize_AdapterValuesWin(t *testing.T) {
	n := newNormalizer()
	rec, _, err := n.Normalize(model.PartialRecord{
		Name:        "Need Grant",
		Description: "financial need",
		TargetType:  "Merit",
		Ethnicity:   "Pacific Islander",
		Gender:      "female",
	}, normalize.Meta{})
	require.NoError(t, err)
	assert.Equal(t, model.TargetMerit, rec.TargetType)
	assert.Equal(t, "Pacific Islander", rec.Ethnicity)
	assert.Equal(t, "female", rec.Gender)
}

func TestNormalize_InvertedRangeWarnsButKeeps(t *testing.T) {
	n := newNormalizer()
	rec, warnings, err := n.Normalize(model.PartialRecord{
		Name: "Odd Award", MinAward: "$9,000", MaxAward: "$1,000",
	}, normalize.Meta{})
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Equal(t, 9000.0, rec.MinAward)
	assert.Equal(t, 1000.0, rec.MaxAward)
}

func TestNormalize_MissingName(t *testing.T) {
	n := newNormalizer()
	_, _, err := n.Normalize(model.PartialRecord{Organization: "Nobody"}, normalize.Meta{})
	assert.ErrorIs(t, err, normalize.ErrMissingName)
}
