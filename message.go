package luadsp

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// AtomKind discriminates control-message tokens.
type AtomKind int

const (
	// AtomNumber is a numeric token.
	AtomNumber AtomKind = iota
	// AtomName is a symbolic token: a parameter or function name.
	AtomName
)

// Atom is one token of a host control message, mirroring the typed token
// lists audio hosts deliver.
type Atom struct {
	Kind  AtomKind
	Name  string
	Value float64
}

// Num builds a numeric atom.
func Num(v float64) Atom {
	return Atom{Kind: AtomNumber, Value: v}
}

// Name builds a symbolic atom.
func Name(s string) Atom {
	return Atom{Kind: AtomName, Name: s}
}

// Dispatch routes one host control message. Three shapes are accepted:
//
//   - a list of numbers: bulk positional replace
//   - alternating name/value pairs: sticky named updates
//   - a leading name followed by either of the above: rebind plus update
//
// A leading name is treated as a function rebind only if it resolves to a
// callable global; otherwise the whole payload is named parameters. When a
// token names both a function and a parameter, the function wins.
//
// Control path only.
func (u *Unit) Dispatch(atoms []Atom) error {
	if u.closed {
		return ErrClosed
	}
	if len(atoms) == 0 {
		return nil
	}

	if atoms[0].Kind == AtomName {
		head := atoms[0].Name
		if u.rt.GlobalIsFunction(head) {
			if err := u.rebind(head); err != nil {
				return err
			}
			return u.dispatchParams(atoms[1:])
		}

		logrus.WithFields(logrus.Fields{
			"function": "Unit.Dispatch",
			"head":     head,
		}).Debug("Leading token is not a function, treating payload as named parameters")

		return u.setNamedPairs(atoms)
	}

	return u.dispatchParams(atoms)
}

// dispatchParams applies the parameter part of a message: all numeric for
// a positional burst, name/value pairs for named updates.
func (u *Unit) dispatchParams(atoms []Atom) error {
	if len(atoms) == 0 {
		return nil
	}

	if atoms[0].Kind == AtomNumber {
		values := make([]float64, 0, len(atoms))
		for _, a := range atoms {
			if a.Kind != AtomNumber {
				return fmt.Errorf("%w: mixed tokens in positional burst", ErrMalformedMessage)
			}
			values = append(values, a.Value)
		}
		return u.store.ReplacePositional(values)
	}

	return u.setNamedPairs(atoms)
}

// setNamedPairs applies alternating name/value tokens as sticky named
// updates.
func (u *Unit) setNamedPairs(atoms []Atom) error {
	if len(atoms)%2 != 0 {
		return fmt.Errorf("%w: odd name/value pair count", ErrMalformedMessage)
	}
	for i := 0; i < len(atoms); i += 2 {
		if atoms[i].Kind != AtomName || atoms[i+1].Kind != AtomNumber {
			return fmt.Errorf("%w: expected name/value pair at token %d", ErrMalformedMessage, i)
		}
	}

	for i := 0; i < len(atoms); i += 2 {
		u.store.SetNamed(atoms[i].Name, atoms[i+1].Value)
	}
	return nil
}
