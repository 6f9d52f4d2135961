package main

import (
	"context"
	"fmt"
	"math"

	"github.com/mklimuk/als/opt300x"
)

type checkResult struct {
	name string
	err  error
}

// roundTrip writes want through set and expects get to return it.
func roundTrip[T comparable](ctx context.Context, name string, want T, set func(context.Context, T) error, get func(context.Context) (T, error)) checkResult {
	res := checkResult{name: name}
	if err := set(ctx, want); err != nil {
		res.err = err
		return res
	}
	got, err := get(ctx)
	if err != nil {
		res.err = err
		return res
	}
	if got != want {
		res.err = fmt.Errorf("wrote %v, read back %v", want, got)
	}
	return res
}

// selftest exercises every configuration field and both limit registers,
// then restores the configuration found at start.
func selftest(ctx context.Context, s *session) []checkResult {
	dev := s.dev
	saved, err := dev.GetRegister(ctx, registers["config"])
	if err != nil {
		return []checkResult{{name: "read configuration", err: err}}
	}
	var results []checkResult
	add := func(r checkResult) {
		results = append(results, r)
	}

	switch s.variant {
	case opt300x.OPT3002:
		for r := opt300x.OPT3002Range(0); r <= opt300x.OPT3002RangeAuto; r++ {
			add(roundTrip(ctx, "range "+r.String(), r, dev.SetOPT3002Range, dev.GetOPT3002Range))
		}
	case opt300x.OPT3005:
		for r := opt300x.OPT3005Range(0); r <= opt300x.OPT3005RangeAuto; r++ {
			add(roundTrip(ctx, "range "+r.String(), r, dev.SetOPT3005Range, dev.GetOPT3005Range))
		}
	default:
		for r := opt300x.Range(0); r <= opt300x.RangeAuto; r++ {
			add(roundTrip(ctx, "range "+r.String(), r, dev.SetRange, dev.GetRange))
		}
	}
	for _, t := range []opt300x.ConversionTime{opt300x.ConversionTime100ms, opt300x.ConversionTime800ms} {
		add(roundTrip(ctx, "conversion time "+t.String(), t, dev.SetConversionTime, dev.GetConversionTime))
	}
	for _, on := range []bool{true, false} {
		add(roundTrip(ctx, fmt.Sprintf("interrupt latch %t", on), on, dev.SetInterruptLatch, dev.GetInterruptLatch))
		add(roundTrip(ctx, fmt.Sprintf("mask exponent %t", on), on, dev.SetMaskExponent, dev.GetMaskExponent))
	}
	for _, p := range []opt300x.Polarity{opt300x.PolarityLow, opt300x.PolarityHigh} {
		add(roundTrip(ctx, "interrupt polarity "+p.String(), p, dev.SetInterruptPolarity, dev.GetInterruptPolarity))
	}
	for _, f := range []opt300x.FaultCount{opt300x.FaultCountOne, opt300x.FaultCountTwo, opt300x.FaultCountFour, opt300x.FaultCountEight} {
		add(roundTrip(ctx, fmt.Sprintf("fault count %d", f.Count()), f, dev.SetFaultCount, dev.GetFaultCount))
	}
	for _, limit := range []uint16{0x0000, 0x1234, 0x5FFF, 0xBFFF} {
		add(roundTrip(ctx, fmt.Sprintf("low limit %#04x", limit), limit, dev.SetLowLimit, dev.GetLowLimit))
		add(roundTrip(ctx, fmt.Sprintf("high limit %#04x", limit), limit, dev.SetHighLimit, dev.GetHighLimit))
	}
	for _, value := range []float64{1, 50, 100, 1000} {
		add(limitConversion(s, value))
	}

	err = dev.SetRegister(ctx, registers["config"], saved)
	if err != nil {
		add(checkResult{name: "restore configuration", err: err})
	}
	return results
}

// limitConversion encodes value as a limit and expects the decoded limit to
// be within one step of the exponent it was encoded with.
func limitConversion(s *session, value float64) checkResult {
	res := checkResult{name: fmt.Sprintf("limit conversion %g %s", value, s.unit())}
	reg, err := s.limitToRegister(value)
	if err != nil {
		res.err = err
		return res
	}
	var back float64
	if s.variant == opt300x.OPT3002 {
		back, err = s.dev.OPT3002LimitConvertToData(reg)
	} else {
		back, err = s.dev.LimitConvertToData(reg)
	}
	if err != nil {
		res.err = err
		return res
	}
	step := opt300x.Decode(reg&0xF000|1, s.variant.Scale())
	if math.Abs(back-value) > step {
		res.err = fmt.Errorf("encoded as %#04x, decoded to %g", reg, back)
	}
	return res
}
