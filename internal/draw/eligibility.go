// Package draw assigns small and large gifts across a roster.
//
// A draw is a sequence of attempts. Each attempt deep-copies the roster,
// assigns every participant a small recipient and then a large recipient by
// random trial, and either succeeds in full or is discarded. There is no
// backtracking inside an attempt. A successful attempt is re-checked by
// Verify before it is returned.
package draw

import "secretsanta/internal/roster"

// CanGift reports whether giver may give kind k to candidate given the
// assignments already made. It has no side effects.
func CanGift(giver, candidate *roster.Person, k roster.GiftKind) bool {
	if candidate == giver {
		return false
	}
	if candidate == giver.Spouse() {
		return false
	}
	// One recipient per kind.
	if giver.GivingTo(k) != nil {
		return false
	}
	// Never two different kinds to the same person.
	for _, other := range roster.Kinds() {
		if giver.GivingTo(other) == candidate {
			return false
		}
	}
	// No swapping the same kind.
	if giver.ReceivingFrom(k) == candidate {
		return false
	}
	return !giver.HasGiven(candidate.Name(), k)
}
