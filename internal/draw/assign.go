package draw

import (
	"math/rand/v2"
	"slices"

	"secretsanta/internal/roster"
)

// assignGiftKind gives every participant in r one recipient of kind k.
//
// The pool of people still waiting for a kind-k gift starts as the whole
// roster and loses each recipient as soon as they are chosen. For each giver
// in roster order, candidates are drawn from a working copy of the pool
// uniformly at random without replacement until one passes CanGift. If the
// working copy empties first the procedure stops and returns how many givers
// it had served along with a *StallError.
func assignGiftKind(r *roster.Roster, k roster.GiftKind, rng *rand.Rand) (int, error) {
	pool := r.People()
	assigned := 0
	for _, giver := range r.People() {
		recipient := chooseRecipient(giver, k, pool, rng)
		if recipient == nil {
			return assigned, &StallError{
				Kind:  k,
				Giver: giver.Name(),
				Small: r.Assigned(roster.Small),
				Large: r.Assigned(roster.Large),
				Size:  r.Len(),
			}
		}
		r.Assign(giver, recipient, k)
		pool = slices.DeleteFunc(pool, func(p *roster.Person) bool { return p == recipient })
		assigned++
	}
	return assigned, nil
}

// chooseRecipient draws from a private copy of pool until a candidate is
// eligible. Returns nil when no one in pool is.
func chooseRecipient(giver *roster.Person, k roster.GiftKind, pool []*roster.Person, rng *rand.Rand) *roster.Person {
	left := slices.Clone(pool)
	for len(left) > 0 {
		i := rng.IntN(len(left))
		candidate := left[i]
		if CanGift(giver, candidate, k) {
			return candidate
		}
		left[i] = left[len(left)-1]
		left = left[:len(left)-1]
	}
	return nil
}
