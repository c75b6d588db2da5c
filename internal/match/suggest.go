package match

import (
	"sort"
	"unicode/utf8"
)

// Levenshtein returns the number of single-rune insertions, deletions and
// substitutions needed to turn a into b.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	if len(ra) == 0 {
		return len(rb)
	}

	row := make([]int, len(ra)+1)
	for i := range row {
		row[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		diag := row[0]
		row[0] = j

		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			next := min(row[i]+1, row[i-1]+1, diag+cost)
			diag = row[i]
			row[i] = next
		}
	}

	return row[len(ra)]
}

// Similarity is 1 for identical normalized names and approaches 0 as the
// edit distance grows towards the longer name's length.
func Similarity(a, b string) float64 {
	na, nb := NormalizeIdent(a), NormalizeIdent(b)

	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if longest == 0 {
		return 1
	}

	return 1 - float64(Levenshtein(na, nb))/float64(longest)
}

// Candidate is a known name scored against a misspelled one.
type Candidate struct {
	Name  string
	Score float64
}

// CandidateList is sorted by descending score, then by name.
type CandidateList []Candidate

func (c CandidateList) Len() int      { return len(c) }
func (c CandidateList) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

func (c CandidateList) Less(i, j int) bool {
	if c[i].Score != c[j].Score {
		return c[i].Score > c[j].Score
	}

	return c[i].Name < c[j].Name
}

// Rank scores every known name against name.
func Rank(name string, known []string) CandidateList {
	out := make(CandidateList, 0, len(known))
	for _, k := range known {
		out = append(out, Candidate{Name: k, Score: Similarity(name, k)})
	}

	sort.Sort(out)

	return out
}

// DefaultThreshold is the similarity a candidate needs to be suggested.
const DefaultThreshold = 0.6

// Suggest returns the best known name for a misspelled one, if any known
// name is at least DefaultThreshold similar.
func Suggest(name string, known []string) (string, bool) {
	ranked := Rank(name, known)
	if len(ranked) == 0 || ranked[0].Score < DefaultThreshold {
		return "", false
	}

	return ranked[0].Name, true
}
