package translator

import "strings"

// minUsablePhoneDigits is the threshold below which a phone is treated as
// unusable for counterparty search.
const minUsablePhoneDigits = 5

// searchTailLength is how many trailing digits are matched against the
// counterparty card, which tolerates differing country-code prefixes.
const searchTailLength = 10

// phoneDigits strips everything but digits from a raw phone value.
func phoneDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneSearchTail returns the trailing digits used for counterparty search,
// and ok=false when the phone is too short to search with.
func phoneSearchTail(raw string) (string, bool) {
	digits := phoneDigits(raw)
	if len(digits) < minUsablePhoneDigits {
		return "", false
	}
	if len(digits) > searchTailLength {
		digits = digits[len(digits)-searchTailLength:]
	}
	return digits, true
}
