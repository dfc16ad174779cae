package rules

import (
	"strings"
	"unicode"
)

const (
	referralPrefix = "REF"

	// ReferralSuffixLen is the default number of identity characters in a code.
	ReferralSuffixLen = 6
)

// ReferralCode derives a stable code from the tail of an actor identity.
func ReferralCode(actorID string) string {
	return ReferralCodeOfLength(actorID, ReferralSuffixLen)
}

// ReferralCodeOfLength keeps the last n letters and digits of the identity.
// The whole identity is used when it is shorter than n.
func ReferralCodeOfLength(actorID string, n int) string {
	var alnum []rune
	for _, r := range strings.ToUpper(actorID) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum = append(alnum, r)
		}
	}
	if n > 0 && len(alnum) > n {
		alnum = alnum[len(alnum)-n:]
	}
	return referralPrefix + string(alnum)
}
