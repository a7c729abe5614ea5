package fmc

import (
	"log"
	"time"
)

// Delayer waits for at least d before returning.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts a function to the Delayer interface.
type DelayFunc func(d time.Duration)

func (f DelayFunc) Delay(d time.Duration) { f(d) }

// SpinDelay busy-waits on the monotonic clock. Bring-up runs before anything
// else may be scheduled, so it never yields.
type SpinDelay struct{}

func (SpinDelay) Delay(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}

// DefaultPollTimeout leaves the busy-poll unbounded.
const DefaultPollTimeout time.Duration = 0

// Option configures a Controller.
type Option func(*Controller)

// WithDelayer replaces the spin delay used between SDRAM commands.
func WithDelayer(d Delayer) Option {
	return func(c *Controller) { c.delay = d }
}

// WithPollTimeout bounds each busy-poll. When the busy flag is still set after
// d, bring-up stops with ErrBusyTimeout wrapped in a SequenceError. Zero keeps
// the poll unbounded.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Controller) { c.pollTimeout = d }
}

// WithLogger enables progress logging of the programming steps.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Config is the complete bank configuration of one controller.
type Config struct {
	Norsram []NorsramBankParams
	Sdram   []SdramBankParams
}

// Validate checks every bank of both lists.
func (c Config) Validate() error {
	if err := validateNorsram(c.Norsram); err != nil {
		return err
	}
	return validateSdram(c.Sdram)
}

// Empty reports whether no bank is configured.
func (c Config) Empty() bool {
	return len(c.Norsram) == 0 && len(c.Sdram) == 0
}

// Controller programs one FMC register block. It owns the block for the
// duration of each call and keeps no register state between calls.
type Controller struct {
	bus         Bus
	family      Family
	gate        bool
	delay       Delayer
	pollTimeout time.Duration
	log         *log.Logger
	now         func() time.Time
}

// NewController returns a controller for the register block behind bus.
func NewController(bus Bus, family Family, opts ...Option) *Controller {
	c := &Controller{
		bus:         bus,
		family:      family,
		gate:        family.HasControllerEnable(),
		delay:       SpinDelay{},
		pollTimeout: DefaultPollTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Family returns the controller family selected at construction.
func (c *Controller) Family() Family {
	return c.family
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}

// InitNorsram programs every listed NOR/PSRAM/SRAM bank. All banks are
// validated before the first register access.
func (c *Controller) InitNorsram(banks []NorsramBankParams) error {
	if err := validateNorsram(banks); err != nil {
		return err
	}
	for _, b := range banks {
		if err := c.configureNorsram(b); err != nil {
			return err
		}
	}
	return nil
}

// InitSdram brings every listed SDRAM slot into normal mode. On families with
// a controller enable bit the whole run is bracketed by clearing and setting
// FMCEN. An empty list touches no register.
//
// Errors other than validation errors are *SequenceError and leave the
// memory unusable until the next reset.
func (c *Controller) InitSdram(banks []SdramBankParams) error {
	if err := validateSdram(banks); err != nil {
		return err
	}
	if len(banks) == 0 {
		return nil
	}

	if c.gate {
		c.logf("controller disable")
		if err := modify(c.bus, RegBCR1, BCR1ControllerEnable, 0); err != nil {
			return &SequenceError{Step: StepDisableController, Err: err}
		}
	}
	for _, b := range banks {
		if err := c.bringUp(b); err != nil {
			return err
		}
	}
	if c.gate {
		return c.enableController()
	}
	return nil
}

func (c *Controller) enableController() error {
	c.logf("controller enable")
	if err := modify(c.bus, RegBCR1, 0, BCR1ControllerEnable); err != nil {
		return &SequenceError{Step: StepEnableController, Err: err}
	}
	return nil
}

// Init validates cfg as a whole, then programs the NOR/SRAM banks followed by
// the SDRAM slots. On families with a controller enable bit any non-empty
// configuration ends with FMCEN set, including one without SDRAM.
func (c *Controller) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.InitNorsram(cfg.Norsram); err != nil {
		return err
	}
	if len(cfg.Sdram) == 0 {
		if c.gate && len(cfg.Norsram) > 0 {
			return c.enableController()
		}
		return nil
	}
	return c.InitSdram(cfg.Sdram)
}
