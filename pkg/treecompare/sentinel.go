package treecompare

// Reserved expected values meaning "present, value unchecked". They are
// recognized only as whole leaf values, never inside larger strings.
const (
	NotNullNumber = 99999
	NotNullString = "NOT_NULL"
)

// Rule is the outcome of resolving an expected leaf against the sentinels.
type Rule int

const (
	// Exact means the expected value is compared literally.
	Exact Rule = iota
	// NotNull means any actual value other than null or undefined passes.
	NotNull
)

// Resolve decides which rule applies to a normalized expected value.
func Resolve(expected any) Rule {
	switch v := expected.(type) {
	case float64:
		if v == NotNullNumber {
			return NotNull
		}
	case string:
		if v == NotNullString {
			return NotNull
		}
	}
	return Exact
}

// satisfiesNotNull does not check type or emptiness: 0, "" and {} all pass.
func satisfiesNotNull(actual any) bool {
	if actual == nil {
		return false
	}
	_, missing := actual.(undefined)
	return !missing
}
