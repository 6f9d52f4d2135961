package opt300x

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		given    uint16
		scale    float64
		expected float64
	}{
		{0x0000, 0.01, 0},
		{0x0001, 0.01, 0.01},
		{0x0FFF, 0.01, 40.95},
		{0x1800, 0.01, 40.96},
		{0x5FFF, 0.01, 1310.40},
		{0xBFFF, 0.01, 83865.60},
		{0x3010, 0.02, 2.56},
		{0xB001, 1.2, 2457.6},
		{0x5C35, 0.01, 1000},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#04x/%v", test.given, test.scale), func(t *testing.T) {
			assert.InDelta(t, test.expected, Decode(test.given, test.scale), 1e-9)
		})
	}
}

func TestDecode_AllWords(t *testing.T) {
	for _, scale := range []float64{OPT3001.Scale(), OPT3005.Scale(), OPT3002.Scale()} {
		for e := 0; e <= 11; e++ {
			for m := 0; m <= maxMantissa; m++ {
				reg := uint16(e)<<12 | uint16(m)
				want := float64(m) * math.Ldexp(scale, e)
				if !assert.Equal(t, want, Decode(reg, scale), "%#04x/%v", reg, scale) {
					return
				}
			}
		}
	}
}

func TestEncodeLimit(t *testing.T) {
	tests := []struct {
		given    float64
		scale    float64
		expected uint16
	}{
		{1310.40, 0.01, 0x5FFF},
		{40.95, 0.01, 0x0FFF},
		{40.96, 0.01, 0x1800},
		{0.01, 0.01, 0x0001},
		{0.015, 0.01, 0x0001},
		{320.5, 0.01, 0x3FA6},
		{1000, 0.01, 0x5C35},
		{83865.60, 0.01, 0xBFFF},
		{100, 0.02, 0x19C4},
		{1.2, 1.2, 0x0001},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v/%v", test.given, test.scale), func(t *testing.T) {
			assert.Equal(t, test.expected, EncodeLimit(test.given, test.scale))
		})
	}
}

func TestEncodeLimit_Clamp(t *testing.T) {
	assert.Equal(t, uint16(0), EncodeLimit(0, 0.01))
	assert.Equal(t, uint16(0), EncodeLimit(0.005, 0.01))
	assert.Equal(t, uint16(0), EncodeLimit(-3, 0.01))
	assert.Equal(t, uint16(0), EncodeLimit(math.NaN(), 0.01))
	assert.Equal(t, uint16(0xBFFF), EncodeLimit(100000, 0.01))
	assert.Equal(t, uint16(0xBFFF), EncodeLimit(math.Inf(1), 0.01))
}

func TestEncodeLimit_Bounds(t *testing.T) {
	for _, scale := range []float64{0.01, 0.02, 1.2} {
		for value := 0.0; value < 200000; value += 97.3 {
			reg := EncodeLimit(value, scale)
			assert.LessOrEqual(t, reg>>12, uint16(maxExponent))
			// truncation never rounds up and loses less than one step at the chosen exponent
			decoded := Decode(reg, scale)
			if value <= Decode(0xBFFF, scale) {
				step := scale * math.Ldexp(1, int(reg>>12))
				assert.LessOrEqual(t, decoded, value+1e-9)
				assert.Greater(t, decoded+step, value-1e-9)
			}
		}
	}
}

func TestEncodeLimit_RoundTrip(t *testing.T) {
	// words with the smallest exponent for their mantissa survive a round trip
	for _, reg := range []uint16{0x0001, 0x0FFF, 0x1800, 0x1FFF, 0x5FFF, 0x7A12, 0xBFFF} {
		t.Run(fmt.Sprintf("%#04x", reg), func(t *testing.T) {
			assert.Equal(t, reg, EncodeLimit(Decode(reg, 0.01), 0.01))
		})
	}
}
