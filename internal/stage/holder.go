package stage

// holder keeps the one live (sub-Fsm, sub-stage) pair of a compound stage.
// Either both slots are set or both are empty, which means no phase remains.
type holder struct {
	fsm   Fsm
	stage runtime
}

// init stores the first sub-Fsm and builds its stage without beginning it.
func (h *holder) init(e *engine, outer CompoundFsm) {
	h.set(e, outer.FirstSubstage(e.g))
}

// checkout replaces the current pair. The old stage is torn down before the next
// sub-Fsm is requested, because teardown stops the timer and may still read the
// old Fsm. The old Fsm outlives the NextSubstage call so the outer Fsm can read
// its results, and is released before the new stage is built.
func (h *holder) checkout(e *engine, outer CompoundFsm, reason Reason) {
	prev := h.fsm
	if h.stage != nil {
		h.stage.release()
	}
	h.stage = nil
	h.fsm = nil

	next := outer.NextSubstage(e.g, prev, reason)

	if r, ok := prev.(Releaser); ok {
		r.Release(e.g)
	}
	h.set(e, next)
}

// clear tears the pair down without asking for a successor.
func (h *holder) clear(e *engine) {
	prev := h.fsm
	if h.stage != nil {
		h.stage.release()
	}
	h.stage = nil
	h.fsm = nil
	if r, ok := prev.(Releaser); ok {
		r.Release(e.g)
	}
}

func (h *holder) set(e *engine, fsm Fsm) {
	if fsm == nil {
		return
	}
	h.fsm = fsm
	h.stage = newRuntime(e, fsm)
}

// get returns the current stage, or nil when no phase remains.
func (h *holder) get() runtime {
	return h.stage
}
