package draw

import "secretsanta/internal/roster"

// Verify re-checks a finished assignment from its giving/receiving state
// alone and returns a *VerificationError for the first broken rule, or nil.
//
// Per-giver rules are checked first, then for each kind that every
// participant receives it exactly once.
func Verify(r *roster.Roster) error {
	people := r.People()
	for _, giver := range people {
		for _, k := range roster.Kinds() {
			if err := verifyGiver(giver, k); err != nil {
				return err
			}
		}
	}
	for _, k := range roster.Kinds() {
		if err := verifyReceivers(people, k); err != nil {
			return err
		}
	}
	return nil
}

// Valid reports whether Verify accepts r.
func Valid(r *roster.Roster) bool {
	return Verify(r) == nil
}

func verifyGiver(giver *roster.Person, k roster.GiftKind) error {
	recipient := giver.GivingTo(k)
	fail := func(rule Rule) error {
		e := &VerificationError{Rule: rule, Giver: giver.Name(), Kind: k}
		if recipient != nil {
			e.Recipient = recipient.Name()
		}
		return e
	}
	switch {
	case recipient == nil:
		return fail(RuleMissing)
	case recipient == giver:
		return fail(RuleSelf)
	case recipient == giver.Spouse():
		return fail(RuleSpouse)
	case recipient == giver.ReceivingFrom(k):
		return fail(RuleReciprocal)
	}
	for _, other := range roster.Kinds() {
		if other != k && giver.GivingTo(other) == recipient {
			return fail(RuleDuplicateGiver)
		}
	}
	if giver.HasGiven(recipient.Name(), k) {
		return fail(RuleHistory)
	}
	return nil
}

// verifyReceivers checks that the recipients of kind k are exactly the
// roster, each once, and that every recipient records its giver.
func verifyReceivers(people []*roster.Person, k roster.GiftKind) error {
	waiting := make(map[*roster.Person]bool, len(people))
	for _, p := range people {
		waiting[p] = true
	}
	for _, giver := range people {
		recipient := giver.GivingTo(k)
		if recipient == nil {
			return &VerificationError{Rule: RuleMissing, Giver: giver.Name(), Kind: k}
		}
		if !waiting[recipient] {
			return &VerificationError{
				Rule:      RuleDuplicateRecipient,
				Giver:     giver.Name(),
				Recipient: recipient.Name(),
				Kind:      k,
			}
		}
		delete(waiting, recipient)
	}
	for _, p := range people {
		if waiting[p] {
			return &VerificationError{Rule: RuleUnreceived, Recipient: p.Name(), Kind: k}
		}
	}
	for _, giver := range people {
		recipient := giver.GivingTo(k)
		if recipient.ReceivingFrom(k) != giver {
			return &VerificationError{
				Rule:      RuleMismatch,
				Giver:     giver.Name(),
				Recipient: recipient.Name(),
				Kind:      k,
			}
		}
	}
	return nil
}
