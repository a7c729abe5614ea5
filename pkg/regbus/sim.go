package regbus

// ReadHook lets tests rewrite the value a read returns.
type ReadHook func(off, val uint32) uint32

// WriteHook lets tests rewrite the value a write stores.
type WriteHook func(off, val uint32) uint32

type busyModel struct {
	trigger   uint32
	status    uint32
	mask      uint32
	reads     int
	remaining int
}

// Sim is an in-memory register file that records every access in order. It
// is not safe for concurrent use.
type Sim struct {
	OnRead  ReadHook
	OnWrite WriteHook

	regs map[uint32]uint32
	ops  []Op
	busy []*busyModel
}

// NewSim returns an empty simulator where every register reads as zero.
func NewSim() *Sim {
	return &Sim{regs: make(map[uint32]uint32)}
}

// Preset sets a register value without recording an access, e.g. to model a
// reset value.
func (s *Sim) Preset(off, val uint32) {
	s.regs[off] = val
}

// Peek returns the stored value of a register without recording an access.
func (s *Sim) Peek(off uint32) uint32 {
	return s.regs[off]
}

// BusyAfterWrite models a busy flag: after every write to trigger, the bits in
// mask read as set in the status register for the next reads reads. A
// negative count keeps the flag set forever.
func (s *Sim) BusyAfterWrite(trigger, status, mask uint32, reads int) {
	s.busy = append(s.busy, &busyModel{
		trigger: trigger,
		status:  status,
		mask:    mask,
		reads:   reads,
	})
}

// Ops returns a copy of every recorded access.
func (s *Sim) Ops() []Op {
	return append([]Op(nil), s.ops...)
}

// Writes returns only the recorded writes, in order.
func (s *Sim) Writes() []Op {
	var writes []Op
	for _, op := range s.ops {
		if op.Kind == OpWrite {
			writes = append(writes, op)
		}
	}
	return writes
}

// ClearOps forgets the recorded accesses but keeps register contents.
func (s *Sim) ClearOps() {
	s.ops = nil
}

func (s *Sim) Read32(off uint32) (uint32, error) {
	if err := checkAligned(off); err != nil {
		return 0, err
	}
	val := s.regs[off]
	for _, m := range s.busy {
		if m.status != off {
			continue
		}
		if m.remaining != 0 {
			val |= m.mask
			if m.remaining > 0 {
				m.remaining--
			}
		} else {
			val &^= m.mask
		}
	}
	if s.OnRead != nil {
		val = s.OnRead(off, val)
	}
	s.ops = append(s.ops, Op{Kind: OpRead, Offset: off, Value: val})
	return val, nil
}

func (s *Sim) Write32(off, val uint32) error {
	if err := checkAligned(off); err != nil {
		return err
	}
	s.ops = append(s.ops, Op{Kind: OpWrite, Offset: off, Value: val})
	if s.OnWrite != nil {
		val = s.OnWrite(off, val)
	}
	s.regs[off] = val
	for _, m := range s.busy {
		if m.trigger == off {
			m.remaining = m.reads
		}
	}
	return nil
}

func (s *Sim) Barrier() error {
	s.ops = append(s.ops, Op{Kind: OpBarrier})
	return nil
}
