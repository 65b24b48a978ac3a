// Package roster holds the participants of a gift exchange: who they are,
// who they are married to, who they gave to last time, and who they are
// giving to and receiving from in the draw currently being built.
//
// A Roster is built once by a loader and never re-derived. The draw works on
// deep copies (Clone) so that a failed attempt can be thrown away whole.
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Gift kinds
// ---------------------------------------------------------------------------

// GiftKind is one of the two gift categories every participant gives and
// receives exactly once.
type GiftKind int

const (
	Small GiftKind = iota
	Large

	numKinds = 2
)

// Kinds returns every gift kind in processing order. Small is always resolved
// for the whole roster before Large begins.
func Kinds() []GiftKind {
	return []GiftKind{Small, Large}
}

func (k GiftKind) String() string {
	switch k {
	case Small:
		return "small"
	case Large:
		return "large"
	default:
		return fmt.Sprintf("GiftKind(%d)", int(k))
	}
}

// ParseGiftKind accepts "small" or "large" in any case.
func ParseGiftKind(s string) (GiftKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return Small, nil
	case "large":
		return Large, nil
	}
	return 0, fmt.Errorf("unknown gift kind %q", s)
}

// MarshalText lets gift kinds appear by name in YAML output and map keys.
func (k GiftKind) MarshalText() ([]byte, error) {
	if k < 0 || k >= numKinds {
		return nil, fmt.Errorf("invalid gift kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *GiftKind) UnmarshalText(b []byte) error {
	parsed, err := ParseGiftKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Pairing is one entry of a giver's history: who received which kind.
// Recipients are recorded by name so a history set stays valid across deep
// copies of the roster.
type Pairing struct {
	Recipient string   `yaml:"recipient"`
	Kind      GiftKind `yaml:"kind"`
}

// ---------------------------------------------------------------------------
// Person
// ---------------------------------------------------------------------------

var (
	// ErrSelfSpouse is returned when a person is named as their own spouse.
	ErrSelfSpouse = errors.New("roster: person cannot be their own spouse")
	// ErrAlreadyMarried is returned when either party already has a
	// different spouse. No state is changed.
	ErrAlreadyMarried = errors.New("roster: already has a spouse")
)

// Person is a single participant.
type Person struct {
	name   string
	spouse *Person

	// history is read-only once loading finishes and is shared by every
	// clone of the roster.
	history map[Pairing]struct{}

	givingTo      [numKinds]*Person
	receivingFrom [numKinds]*Person
}

// NewPerson returns a participant with no relations.
func NewPerson(name string) *Person {
	return &Person{name: name, history: make(map[Pairing]struct{})}
}

func (p *Person) Name() string   { return p.name }
func (p *Person) String() string { return p.name }

// Spouse returns the person's spouse or nil.
func (p *Person) Spouse() *Person { return p.spouse }

// GivingTo returns the recipient of kind k, or nil while unassigned.
func (p *Person) GivingTo(k GiftKind) *Person { return p.givingTo[k] }

// ReceivingFrom returns the giver of kind k, or nil while unassigned.
func (p *Person) ReceivingFrom(k GiftKind) *Person { return p.receivingFrom[k] }

// HasGiven reports whether recipient received kind k from p in a prior
// exchange.
func (p *Person) HasGiven(recipient string, k GiftKind) bool {
	_, ok := p.history[Pairing{Recipient: recipient, Kind: k}]
	return ok
}

// PreviousGiftees returns the person's history sorted by kind then name.
func (p *Person) PreviousGiftees() []Pairing {
	out := make([]Pairing, 0, len(p.history))
	for pr := range p.history {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Recipient < out[j].Recipient
	})
	return out
}

// AddPreviousGiftee records that p gave kind k to recipient in a prior
// exchange. Call it only before a draw starts.
func (p *Person) AddPreviousGiftee(recipient string, k GiftKind) {
	p.history[Pairing{Recipient: recipient, Kind: k}] = struct{}{}
}

// AddSpouse marries a and b. Both sides are written together. Marrying an
// existing couple again is a no-op.
func AddSpouse(a, b *Person) error {
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfSpouse, a.name)
	}
	if a.spouse == b && b.spouse == a {
		return nil
	}
	if a.spouse != nil {
		return fmt.Errorf("%w: %s is married to %s", ErrAlreadyMarried, a.name, a.spouse.name)
	}
	if b.spouse != nil {
		return fmt.Errorf("%w: %s is married to %s", ErrAlreadyMarried, b.name, b.spouse.name)
	}
	a.spouse = b
	b.spouse = a
	return nil
}

// ---------------------------------------------------------------------------
// Roster
// ---------------------------------------------------------------------------

// Roster is an ordered collection of participants with unique names.
type Roster struct {
	people []*Person
	byName map[string]*Person
}

// New builds a roster from people in the given order. Names must be unique;
// a duplicate is reported and the roster is not built.
func New(people ...*Person) (*Roster, error) {
	r := &Roster{
		people: make([]*Person, 0, len(people)),
		byName: make(map[string]*Person, len(people)),
	}
	for _, p := range people {
		if _, dup := r.byName[p.name]; dup {
			return nil, fmt.Errorf("roster: duplicate name %q", p.name)
		}
		r.people = append(r.people, p)
		r.byName[p.name] = p
	}
	return r, nil
}

// Len returns the number of participants.
func (r *Roster) Len() int { return len(r.people) }

// People returns a new slice holding the same Person pointers in roster
// order. Shrinking the returned slice never disturbs the roster.
func (r *Roster) People() []*Person {
	out := make([]*Person, len(r.people))
	copy(out, r.people)
	return out
}

// Lookup returns the participant with the given name.
func (r *Roster) Lookup(name string) (*Person, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Assign records that giver gives kind k to recipient. Both directions are
// written in one step. Callers check eligibility first.
func (r *Roster) Assign(giver, recipient *Person, k GiftKind) {
	giver.givingTo[k] = recipient
	recipient.receivingFrom[k] = giver
}

// Reset clears every assignment, leaving identities and relations intact.
func (r *Roster) Reset() {
	for _, p := range r.people {
		p.givingTo = [numKinds]*Person{}
		p.receivingFrom = [numKinds]*Person{}
	}
}

// Assigned returns how many participants have a recipient of kind k.
func (r *Roster) Assigned(k GiftKind) int {
	n := 0
	for _, p := range r.people {
		if p.givingTo[k] != nil {
			n++
		}
	}
	return n
}

// Clone returns a deep copy: new Person values with spouse and assignment
// pointers remapped into the copy. History sets are shared, not copied.
func (r *Roster) Clone() *Roster {
	remap := make(map[*Person]*Person, len(r.people))
	out := &Roster{
		people: make([]*Person, len(r.people)),
		byName: make(map[string]*Person, len(r.people)),
	}
	for i, p := range r.people {
		c := &Person{name: p.name, history: p.history}
		remap[p] = c
		out.people[i] = c
		out.byName[c.name] = c
	}
	for i, p := range r.people {
		c := out.people[i]
		c.spouse = remap[p.spouse]
		for k := range numKinds {
			c.givingTo[k] = remap[p.givingTo[k]]
			c.receivingFrom[k] = remap[p.receivingFrom[k]]
		}
	}
	return out
}
