package regbus

import (
	"fmt"
	"log"
)

// Trace decorates a Bus and logs every access. Names resolves offsets to register
// names; when nil the raw offset is printed.
type Trace struct {
	bus    Bus
	logger *log.Logger
	names  func(off uint32) string
}

// NewTrace wraps bus so that every access is written to logger.
func NewTrace(bus Bus, logger *log.Logger, names func(off uint32) string) *Trace {
	return &Trace{bus: bus, logger: logger, names: names}
}

func (t *Trace) name(off uint32) string {
	if t.names != nil {
		return t.names(off)
	}
	return fmt.Sprintf("0x%03X", off)
}

func (t *Trace) Read32(off uint32) (uint32, error) {
	val, err := t.bus.Read32(off)
	if err != nil {
		t.logger.Printf("read %s failed: %v", t.name(off), err)
		return 0, err
	}
	t.logger.Printf("read  %-6s -> 0x%08X", t.name(off), val)
	return val, nil
}

func (t *Trace) Write32(off, val uint32) error {
	if err := t.bus.Write32(off, val); err != nil {
		t.logger.Printf("write %s failed: %v", t.name(off), err)
		return err
	}
	t.logger.Printf("write %-6s <- 0x%08X", t.name(off), val)
	return nil
}

func (t *Trace) Barrier() error {
	if err := t.bus.Barrier(); err != nil {
		t.logger.Printf("barrier failed: %v", err)
		return err
	}
	t.logger.Printf("barrier")
	return nil
}
