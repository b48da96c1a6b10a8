package loopir

import (
	"fmt"
	"strings"
)

// Match expressions select instructions. An expression is a list of
// groups joined by " or "; a group is a list of atoms joined by
// " and "; an atom is one of
//
//	tag:NAME      instruction carries the tag
//	id:NAME       instruction ID equals NAME, or matches a trailing *
//	writes:VAR    instruction writes VAR
//	reads:VAR     instruction reads VAR
type matcher func(in *Instruction) bool

func parseMatch(expr string) (matcher, error) {
	var groups []matcher
	for _, groupExpr := range strings.Split(expr, " or ") {
		var atoms []matcher
		for _, atomExpr := range strings.Split(groupExpr, " and ") {
			atom, err := parseAtom(strings.TrimSpace(atomExpr))
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, atom)
		}
		group := atoms
		groups = append(groups, func(in *Instruction) bool {
			for _, atom := range group {
				if !atom(in) {
					return false
				}
			}
			return true
		})
	}
	all := groups
	return func(in *Instruction) bool {
		for _, group := range all {
			if group(in) {
				return true
			}
		}
		return false
	}, nil
}

func parseAtom(atom string) (matcher, error) {
	kind, arg, ok := strings.Cut(atom, ":")
	if !ok {
		return nil, fmt.Errorf("loopir: malformed match atom %q", atom)
	}
	switch kind {
	case "tag":
		return func(in *Instruction) bool { return in.Tags.Has(arg) }, nil
	case "id":
		if prefix, found := strings.CutSuffix(arg, "*"); found {
			return func(in *Instruction) bool { return strings.HasPrefix(in.ID, prefix) }, nil
		}
		return func(in *Instruction) bool { return in.ID == arg }, nil
	case "writes":
		return func(in *Instruction) bool { return in.Writes.Has(arg) }, nil
	case "reads":
		return func(in *Instruction) bool { return in.Reads.Has(arg) }, nil
	default:
		return nil, fmt.Errorf("loopir: unknown match kind %q in %q", kind, atom)
	}
}

// MatchInstructions returns the indexes of the instructions selected
// by the match expression, in kernel order.
func MatchInstructions(k *Kernel, expr string) ([]int, error) {
	m, err := parseMatch(expr)
	if err != nil {
		return nil, err
	}
	var out []int
	for i := range k.Instructions {
		if m(&k.Instructions[i]) {
			out = append(out, i)
		}
	}
	return out, nil
}
