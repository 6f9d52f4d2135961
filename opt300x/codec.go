package opt300x

import "math"

const (
	maxExponent = 11
	maxMantissa = 0xFFF
)

// Decode converts a result or limit register word to a physical value:
// mantissa × 2^exponent × scale.
func Decode(reg uint16, scale float64) float64 {
	exponent := int(reg>>12) & 0xF
	mantissa := float64(reg & maxMantissa)
	return mantissa * math.Ldexp(scale, exponent)
}

// EncodeLimit converts a physical value to the register encoding used by the
// limit registers. The exponent is kept as small as possible so the mantissa
// carries the most resolution without overflowing 12 bits. Values that can
// not be represented are clamped: NaN and values below one step encode to 0,
// values above full scale saturate to exponent 11 and mantissa 4095.
func EncodeLimit(value float64, scale float64) uint16 {
	f := value / scale
	if math.IsNaN(f) || f < 1 {
		return 0
	}
	if f >= math.Ldexp(maxMantissa, maxExponent) {
		return maxExponent<<12 | maxMantissa
	}
	fraction, xp := math.Frexp(f)
	for xp > maxExponent || fraction < maxMantissa {
		if xp == 0 {
			break
		}
		if fraction*2 > maxMantissa {
			break
		}
		xp--
		fraction *= 2
	}
	return uint16(xp&0xF)<<12 | uint16(fraction)&maxMantissa
}
