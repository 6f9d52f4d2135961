package opt300x

import (
	"context"
	"time"
)

const (
	pollInterval = 10 * time.Millisecond
	pollAttempts = 500
)

// StartContinuousRead switches the device to continuous conversions.
func (d *Device) StartContinuousRead(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldMode, uint16(ModeContinuous))
}

// StopContinuousRead puts the device into shutdown.
func (d *Device) StopContinuousRead(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldMode, uint16(ModeShutdown))
}

// ContinuousRead returns the latest conversion in lux together with the raw
// result word. The device should be started with StartContinuousRead.
func (d *Device) ContinuousRead(ctx context.Context) (uint16, float64, error) {
	if err := d.ready(); err != nil {
		return 0, 0, err
	}
	if err := d.require(capLux, "ContinuousRead"); err != nil {
		return 0, 0, err
	}
	return d.continuousRead(ctx)
}

// OPT3002ContinuousRead returns the latest conversion in nW/cm2.
func (d *Device) OPT3002ContinuousRead(ctx context.Context) (uint16, float64, error) {
	if err := d.ready(); err != nil {
		return 0, 0, err
	}
	if err := d.require(capRadiometric, "OPT3002ContinuousRead"); err != nil {
		return 0, 0, err
	}
	return d.continuousRead(ctx)
}

// SingleRead triggers one conversion and blocks until it completes, for at
// most 500 polls 10ms apart.
func (d *Device) SingleRead(ctx context.Context) (uint16, float64, error) {
	if err := d.ready(); err != nil {
		return 0, 0, err
	}
	if err := d.require(capLux, "SingleRead"); err != nil {
		return 0, 0, err
	}
	return d.singleRead(ctx)
}

// OPT3002SingleRead is SingleRead for OPT3002, the value is in nW/cm2.
func (d *Device) OPT3002SingleRead(ctx context.Context) (uint16, float64, error) {
	if err := d.ready(); err != nil {
		return 0, 0, err
	}
	if err := d.require(capRadiometric, "OPT3002SingleRead"); err != nil {
		return 0, 0, err
	}
	return d.singleRead(ctx)
}

func (d *Device) continuousRead(ctx context.Context) (uint16, float64, error) {
	prev, err := d.readConfig(ctx)
	if err != nil {
		return 0, 0, err
	}
	if Configuration(prev).Overflow() {
		d.logger().Error("opt300x: data is overflow", "variant", d.variant)
		return 0, 0, ErrOverflow
	}
	return d.readResult(ctx)
}

func (d *Device) singleRead(ctx context.Context) (uint16, float64, error) {
	err := d.updateField(ctx, fieldMode, uint16(ModeSingle))
	if err != nil {
		return 0, 0, err
	}
	ready := false
	for timeout := pollAttempts; timeout != 0 && !ready; timeout-- {
		d.sleep(pollInterval)
		prev, err := d.readConfig(ctx)
		if err != nil {
			return 0, 0, err
		}
		conf := Configuration(prev)
		ready = conf.Ready()
		if !ready && conf.Overflow() {
			d.logger().Error("opt300x: data is overflow", "variant", d.variant)
			return 0, 0, ErrOverflow
		}
	}
	if !ready {
		d.logger().Error("opt300x: read timeout", "variant", d.variant, "polls", pollAttempts)
		return 0, 0, ErrTimeout
	}
	return d.readResult(ctx)
}

func (d *Device) readResult(ctx context.Context) (uint16, float64, error) {
	raw, err := d.read(ctx, regResult, "result")
	if err != nil {
		return 0, 0, err
	}
	return raw, Decode(raw, d.variant.Scale()), nil
}

// HandleInterrupt reads the configuration register once and calls the
// registered callback for the high limit flag, then for the low limit flag.
// Flags are left for the device to clear.
func (d *Device) HandleInterrupt(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	prev, err := d.readConfig(ctx)
	if err != nil {
		return err
	}
	conf := Configuration(prev)
	if conf.FlagHigh() && d.callback != nil {
		d.callback(InterruptHighLimit)
	}
	if conf.FlagLow() && d.callback != nil {
		d.callback(InterruptLowLimit)
	}
	return nil
}
