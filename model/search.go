package model

// SearchMethod names which tier of the cascade produced a result (spec §4.10).
type SearchMethod string

const (
	MethodExact    SearchMethod = "exact"
	MethodPrefix   SearchMethod = "prefix"
	MethodFuzzy    SearchMethod = "fuzzy"
	MethodSemantic SearchMethod = "semantic"
)

// precedence ranks methods strongest-first for the sort in spec §4.10 step 4.
var precedence = map[SearchMethod]int{
	MethodExact:    0,
	MethodPrefix:   1,
	MethodFuzzy:    2,
	MethodSemantic: 3,
}

// Precedence returns m's sort rank (lower is stronger). Unknown methods sort last.
func (m SearchMethod) Precedence() int {
	if p, ok := precedence[m]; ok {
		return p
	}
	return len(precedence)
}

// SearchResult is one ranked hit from any tier of the cascade.
type SearchResult struct {
	Term         string       `json:"term"`
	OriginalTerm string       `json:"original_term,omitempty"`
	Score        float64      `json:"score"`
	Method       SearchMethod `json:"method"`
	Frequency    int          `json:"frequency,omitempty"`
}
