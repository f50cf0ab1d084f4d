package domain

import "fmt"

// Validate checks the duration rules of a session before any system
// mutation happens. Every failure wraps ErrConfigInvalid.
func (c SessionConfig) Validate() error {
	if c.Total <= 0 {
		return fmt.Errorf("%w: session duration must be positive", ErrConfigInvalid)
	}

	switch c.OnAcquireFailure {
	case "", PolicyDegrade, PolicyAbort:
	default:
		return fmt.Errorf("%w: unknown acquire failure policy %q", ErrConfigInvalid, c.OnAcquireFailure)
	}

	p := c.Pomodoro
	if p == nil {
		return nil
	}
	if p.Work <= 0 {
		return fmt.Errorf("%w: pomodoro work interval must be positive", ErrConfigInvalid)
	}
	if p.ShortBreak < 0 || p.LongBreak < 0 {
		return fmt.Errorf("%w: break lengths cannot be negative", ErrConfigInvalid)
	}
	if p.CyclesBeforeLongBreak < 0 {
		return fmt.Errorf("%w: cycles before long break cannot be negative", ErrConfigInvalid)
	}
	if c.Total < p.Work {
		return fmt.Errorf("%w: session (%s) is shorter than one work interval (%s)",
			ErrConfigInvalid, c.Total, p.Work)
	}
	return nil
}

// Policy returns the effective acquire failure policy.
func (c SessionConfig) Policy() AcquirePolicy {
	if c.OnAcquireFailure == "" {
		return PolicyDegrade
	}
	return c.OnAcquireFailure
}
