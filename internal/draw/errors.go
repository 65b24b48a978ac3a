package draw

import (
	"errors"
	"fmt"

	"secretsanta/internal/roster"
)

var (
	// ErrStall marks an attempt that ran out of eligible recipients for one
	// participant. The solver recovers by starting a new attempt.
	ErrStall = errors.New("draw: assignment stalled")

	// ErrVerification marks a finished assignment that breaks a rule. This
	// is a defect in the assignment procedure and is never retried.
	ErrVerification = errors.New("draw: verification failed")

	// ErrAttemptsExhausted is returned when Solver.MaxAttempts is reached
	// without a successful attempt.
	ErrAttemptsExhausted = errors.New("draw: attempts exhausted")
)

// StallError reports where an attempt got stuck and how far it had come.
type StallError struct {
	Kind  roster.GiftKind
	Giver string
	Small int // participants holding a small recipient when the attempt stalled
	Large int // participants holding a large recipient when the attempt stalled
	Size  int
}

func (e *StallError) Error() string {
	return fmt.Sprintf("failed to assign gifts: (%d/%d small gifts) - (%d/%d large gifts)",
		e.Small, e.Size, e.Large, e.Size)
}

func (e *StallError) Unwrap() error { return ErrStall }

// Rule names one condition a finished assignment must meet.
type Rule string

const (
	RuleMissing            Rule = "missing"             // giver has no recipient
	RuleSelf               Rule = "self"                // giver gives to themself
	RuleSpouse             Rule = "spouse"              // giver gives to their spouse
	RuleReciprocal         Rule = "reciprocal"          // recipient gives the same kind back
	RuleDuplicateGiver     Rule = "duplicate-giver"     // one giver, one recipient, two kinds
	RuleHistory            Rule = "history"             // pairing repeats a prior exchange
	RuleDuplicateRecipient Rule = "duplicate-recipient" // someone receives a kind twice
	RuleUnreceived         Rule = "unreceived"          // someone receives nothing of a kind
	RuleMismatch           Rule = "mismatch"            // recipient does not record the giver
)

// VerificationError describes the first rule a finished assignment breaks.
type VerificationError struct {
	Rule      Rule
	Giver     string
	Recipient string
	Kind      roster.GiftKind
}

func (e *VerificationError) Error() string {
	switch e.Rule {
	case RuleMissing:
		return fmt.Sprintf("%s missing a %s gift", e.Giver, e.Kind)
	case RuleSelf:
		return fmt.Sprintf("%s giving %s gift to self", e.Giver, e.Kind)
	case RuleSpouse:
		return fmt.Sprintf("%s giving %s gift to spouse %s", e.Giver, e.Kind, e.Recipient)
	case RuleReciprocal:
		return fmt.Sprintf("%s and %s giving each other a %s gift", e.Giver, e.Recipient, e.Kind)
	case RuleDuplicateGiver:
		return fmt.Sprintf("%s giving %s more than one gift", e.Giver, e.Recipient)
	case RuleHistory:
		return fmt.Sprintf("%s gave %s a %s gift previously", e.Giver, e.Recipient, e.Kind)
	case RuleDuplicateRecipient:
		return fmt.Sprintf("%s receiving multiple %s gifts", e.Recipient, e.Kind)
	case RuleUnreceived:
		return fmt.Sprintf("%s not receiving a %s gift", e.Recipient, e.Kind)
	case RuleMismatch:
		return fmt.Sprintf("%s gives %s a %s gift but %s does not record it", e.Giver, e.Recipient, e.Kind, e.Recipient)
	}
	return fmt.Sprintf("rule %s broken by %s", e.Rule, e.Giver)
}

func (e *VerificationError) Unwrap() error { return ErrVerification }
