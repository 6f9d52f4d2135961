package opt300x

import "context"

// SetRange sets the full-scale range of OPT3001, OPT3004, OPT3006 and OPT3007.
func (d *Device) SetRange(ctx context.Context, r Range) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.require(capGenericRange, "SetRange"); err != nil {
		return err
	}
	return d.updateField(ctx, fieldRange, uint16(r))
}

func (d *Device) GetRange(ctx context.Context) (Range, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capGenericRange, "GetRange"); err != nil {
		return 0, err
	}
	v, err := d.readField(ctx, fieldRange)
	return Range(v), err
}

func (d *Device) SetOPT3002Range(ctx context.Context, r OPT3002Range) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.require(capOPT3002Range, "SetOPT3002Range"); err != nil {
		return err
	}
	return d.updateField(ctx, fieldRange, uint16(r))
}

func (d *Device) GetOPT3002Range(ctx context.Context) (OPT3002Range, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capOPT3002Range, "GetOPT3002Range"); err != nil {
		return 0, err
	}
	v, err := d.readField(ctx, fieldRange)
	return OPT3002Range(v), err
}

func (d *Device) SetOPT3005Range(ctx context.Context, r OPT3005Range) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.require(capOPT3005Range, "SetOPT3005Range"); err != nil {
		return err
	}
	return d.updateField(ctx, fieldRange, uint16(r))
}

func (d *Device) GetOPT3005Range(ctx context.Context) (OPT3005Range, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capOPT3005Range, "GetOPT3005Range"); err != nil {
		return 0, err
	}
	v, err := d.readField(ctx, fieldRange)
	return OPT3005Range(v), err
}

func (d *Device) SetConversionTime(ctx context.Context, t ConversionTime) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldConversionTime, uint16(t))
}

func (d *Device) GetConversionTime(ctx context.Context) (ConversionTime, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	v, err := d.readField(ctx, fieldConversionTime)
	return ConversionTime(v), err
}

// SetInterruptLatch selects latched window-style comparison when enabled,
// transparent hysteresis-style comparison otherwise.
func (d *Device) SetInterruptLatch(ctx context.Context, enable bool) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldLatch, boolBit(enable))
}

func (d *Device) GetInterruptLatch(ctx context.Context) (bool, error) {
	if err := d.ready(); err != nil {
		return false, err
	}
	v, err := d.readField(ctx, fieldLatch)
	return v == 1, err
}

func (d *Device) SetInterruptPolarity(ctx context.Context, p Polarity) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldPolarity, uint16(p))
}

func (d *Device) GetInterruptPolarity(ctx context.Context) (Polarity, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	v, err := d.readField(ctx, fieldPolarity)
	return Polarity(v), err
}

// SetMaskExponent forces the exponent of the result register to zero. The
// value is passed through to the chip, decoding does not depend on it.
func (d *Device) SetMaskExponent(ctx context.Context, enable bool) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldMaskExponent, boolBit(enable))
}

func (d *Device) GetMaskExponent(ctx context.Context) (bool, error) {
	if err := d.ready(); err != nil {
		return false, err
	}
	v, err := d.readField(ctx, fieldMaskExponent)
	return v == 1, err
}

func (d *Device) SetFaultCount(ctx context.Context, count FaultCount) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.updateField(ctx, fieldFaultCount, uint16(count))
}

func (d *Device) GetFaultCount(ctx context.Context) (FaultCount, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	v, err := d.readField(ctx, fieldFaultCount)
	return FaultCount(v), err
}

// GetConfiguration returns a fresh snapshot of the configuration register.
func (d *Device) GetConfiguration(ctx context.Context) (Configuration, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	v, err := d.readConfig(ctx)
	return Configuration(v), err
}

func (d *Device) SetLowLimit(ctx context.Context, limit uint16) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.write(ctx, regLowLimit, limit, "low limit")
}

func (d *Device) GetLowLimit(ctx context.Context) (uint16, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.read(ctx, regLowLimit, "low limit")
}

func (d *Device) SetHighLimit(ctx context.Context, limit uint16) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.write(ctx, regHighLimit, limit, "high limit")
}

func (d *Device) GetHighLimit(ctx context.Context) (uint16, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.read(ctx, regHighLimit, "high limit")
}

// LimitConvertToRegister encodes a lux threshold for SetLowLimit/SetHighLimit.
func (d *Device) LimitConvertToRegister(lux float64) (uint16, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capLux, "LimitConvertToRegister"); err != nil {
		return 0, err
	}
	return EncodeLimit(lux, d.variant.Scale()), nil
}

// LimitConvertToData decodes a limit register word to lux.
func (d *Device) LimitConvertToData(reg uint16) (float64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capLux, "LimitConvertToData"); err != nil {
		return 0, err
	}
	return Decode(reg, d.variant.Scale()), nil
}

// OPT3002LimitConvertToRegister encodes an irradiance threshold in nW/cm2.
func (d *Device) OPT3002LimitConvertToRegister(nwcm2 float64) (uint16, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capRadiometric, "OPT3002LimitConvertToRegister"); err != nil {
		return 0, err
	}
	return EncodeLimit(nwcm2, d.variant.Scale()), nil
}

func (d *Device) OPT3002LimitConvertToData(reg uint16) (float64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.require(capRadiometric, "OPT3002LimitConvertToData"); err != nil {
		return 0, err
	}
	return Decode(reg, d.variant.Scale()), nil
}

// SetRegister writes any register without interpreting the value.
func (d *Device) SetRegister(ctx context.Context, reg byte, value uint16) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.write(ctx, reg, value, "register")
}

// GetRegister reads any register without interpreting the value.
func (d *Device) GetRegister(ctx context.Context, reg byte) (uint16, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.read(ctx, reg, "register")
}

func boolBit(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
