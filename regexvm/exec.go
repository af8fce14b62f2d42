package regexvm

// snapshot is a refcounted, copy-on-write record of submatch boundaries
// carried by a thread. Threads that never hit a Begin/End share their
// parent's arrays; cow only clones when more than one thread still holds
// the snapshot. Refcounts are incremented whenever a snapshot is handed
// to another scheduled thread (on Fork and on each consuming step) and
// decremented only inside cow itself — a thread that dies without branching
// leaves its share uncollected, which only costs an extra clone later,
// never an incorrect in-place mutation of a snapshot another thread
// still reads.
type snapshot struct {
	refs   int
	begins []int
	ends   []int
}

func newSnapshot(numSub int) *snapshot {
	begins := make([]int, numSub)
	ends := make([]int, numSub)
	for i := range begins {
		begins[i] = -1
		ends[i] = -1
	}
	return &snapshot{refs: 1, begins: begins, ends: ends}
}

func retain(s *snapshot) *snapshot {
	s.refs++
	return s
}

func cow(s *snapshot) *snapshot {
	if s.refs <= 1 {
		return s
	}
	s.refs--
	return &snapshot{
		refs:   1,
		begins: append([]int(nil), s.begins...),
		ends:   append([]int(nil), s.ends...),
	}
}

type thread struct {
	pc   int
	snap *snapshot
}

// Exec finds the longest prefix of input, starting at position 0, that
// the Program matches. Anchoring via a trailing '$' in the source
// pattern is not checked here: compare the returned Match.End against
// len(input) when Program.AnchorEnd is set.
func (p *Program) Exec(input []byte) Match {
	stamp := make([]int, len(p.Insts))
	for i := range stamp {
		stamp[i] = -1
	}

	clist := make([]thread, 0, len(p.Insts))
	nlist := make([]thread, 0, len(p.Insts))

	best := Match{Sub: make([][2]int, p.NumSub)}
	for i := range best.Sub {
		best.Sub[i] = [2]int{-1, -1}
	}

	clist = addThread(clist, p, p.Start, newSnapshot(p.NumSub), 0, stamp)

	for pos := 0; ; pos++ {
		if len(clist) == 0 {
			break
		}
		nlist = nlist[:0]
		for _, th := range clist {
			inst := p.Insts[th.pc]
			switch inst.Op {
			case OpAccept:
				if pos >= best.End || !best.Matched {
					best.Matched = true
					best.End = pos
					copy(best.Sub, th.snap.begins2D())
				}
				// Lower-priority threads at this step cannot produce a
				// longer match than threads already scheduled into
				// nlist, so stop considering them.
				goto nextPos
			case OpAny:
				if pos < len(input) {
					nlist = addThread(nlist, p, th.pc+1, retain(th.snap), pos+1, stamp)
				}
			case OpChar:
				if pos < len(input) && rune(input[pos]) == inst.Char {
					nlist = addThread(nlist, p, th.pc+1, retain(th.snap), pos+1, stamp)
				}
			case OpClass:
				if pos < len(input) && inst.Class.Contains(input[pos]) {
					nlist = addThread(nlist, p, th.pc+1, retain(th.snap), pos+1, stamp)
				}
			}
		}
	nextPos:
		if pos >= len(input) {
			break
		}
		clist, nlist = nlist, clist
	}

	return best
}

// begins2D pairs up a snapshot's begin/end arrays into [][2]int.
func (s *snapshot) begins2D() [][2]int {
	out := make([][2]int, len(s.begins))
	for i := range s.begins {
		out[i] = [2]int{s.begins[i], s.ends[i]}
	}
	return out
}

// addThread schedules pc into list, resolving Jump/Fork/Begin/End
// recursively (they consume no input and run within the same step); Any/
// Char/Class/Accept are terminal for this step and are appended as-is.
// The stamp slice prevents scheduling the same pc twice within a step:
// pos is used directly as the stamp value since it increases
// monotonically across the whole Exec call.
func addThread(list []thread, p *Program, pc int, snap *snapshot, pos int, stamp []int) []thread {
	if stamp[pc] == pos {
		return list
	}
	stamp[pc] = pos

	inst := p.Insts[pc]
	switch inst.Op {
	case OpJump:
		return addThread(list, p, pc+inst.X, snap, pos, stamp)
	case OpFork:
		list = addThread(list, p, pc+inst.X, snap, pos, stamp)
		return addThread(list, p, pc+inst.Y, retain(snap), pos, stamp)
	case OpBegin:
		ns := cow(snap)
		ns.begins[inst.Slot] = pos
		return addThread(list, p, pc+1, ns, pos, stamp)
	case OpEnd:
		ns := cow(snap)
		ns.ends[inst.Slot] = pos
		return addThread(list, p, pc+1, ns, pos, stamp)
	default:
		return append(list, thread{pc: pc, snap: snap})
	}
}
