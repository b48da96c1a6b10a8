package tile

import "github.com/samcharles93/looptile/internal/loopir"

// mergeScratch collapses paired matrix staging buffers from the two
// matvec stages into one allocation sized to the larger tile
// footprint, provided their live ranges within one block iteration
// never overlap. Overlapping pairs are kept as aliased buffers with
// mutually exclusive use enforced by dependency edges instead.
func mergeScratch(k *loopir.Kernel, quadScratch, basisScratch []string, t1Footprint, t2Footprint int) (*loopir.Kernel, error) {
	n := len(quadScratch)
	if len(basisScratch) < n {
		n = len(basisScratch)
	}
	var err error
	for i := 0; i < n; i++ {
		q, b := quadScratch[i], basisScratch[i]
		if k, err = loopir.FlattenTemp(k, q); err != nil {
			return nil, err
		}
		if k, err = loopir.FlattenTemp(k, b); err != nil {
			return nil, err
		}
		if scratchLiveRangesDisjoint(k, q, b) {
			into, from := q, b
			if t1Footprint <= t2Footprint {
				into, from = b, q
			}
			if k, err = loopir.AbsorbTemporary(k, into, from); err != nil {
				return nil, err
			}
		} else {
			if k, err = loopir.AliasTemporaries(k, []string{q, b}); err != nil {
				return nil, err
			}
		}
	}
	return k, nil
}

// scratchLiveRangesDisjoint reports whether the last access of one
// buffer precedes the first access of the other in program order, and
// no instruction touches both. The basis staging's dependency on the
// whole quadrature stage (inserted right after the merge) pins this
// order at execution time.
func scratchLiveRangesDisjoint(k *loopir.Kernel, a, b string) bool {
	firstA, lastA := liveRange(k, a)
	firstB, lastB := liveRange(k, b)
	if firstA < 0 || firstB < 0 {
		return false
	}
	for _, in := range k.Instructions {
		touchesA := in.Reads.Has(a) || in.Writes.Has(a)
		touchesB := in.Reads.Has(b) || in.Writes.Has(b)
		if touchesA && touchesB {
			return false
		}
	}
	return lastA < firstB || lastB < firstA
}

func liveRange(k *loopir.Kernel, name string) (first, last int) {
	first, last = -1, -1
	for i, in := range k.Instructions {
		if in.Reads.Has(name) || in.Writes.Has(name) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}
