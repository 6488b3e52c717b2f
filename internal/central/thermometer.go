package central

import (
	"errors"
	"fmt"
)

// measurementLen is the fixed wire size of a temperature record: flags,
// 3-byte mantissa, exponent.
const measurementLen = 5

// ErrShortMeasurement is returned when a pushed value is shorter than the
// temperature record layout requires.
var ErrShortMeasurement = errors.New("central: measurement shorter than 5 bytes")

// Measurement is one decoded temperature record. Hundredths is the value in
// hundredths of a degree after exponent correction.
type Measurement struct {
	Flags      byte
	Hundredths int32
	Fahrenheit bool
}

// DecodeMeasurement decodes the 5-byte record pushed by the peripheral:
// byte 0 is a flags bitfield, bytes 1-3 a little-endian two's-complement
// mantissa, byte 4 a one-byte two's-complement exponent (an IEEE-11073
// style short float, restricted). The exponent correction is deliberately
// one-sided: while the exponent exceeds 1 the mantissa is divided by 10,
// leaving a value in hundredths of a degree. Exponents of 1 or less are
// not applied; the profile does not use genuine scientific notation here.
// Do not generalize this beyond that range.
func DecodeMeasurement(value []byte) (Measurement, error) {
	if len(value) < measurementLen {
		return Measurement{}, fmt.Errorf("%w: got %d", ErrShortMeasurement, len(value))
	}
	flags := value[0]
	mantissa := int32(value[1]) | int32(value[2])<<8 | int32(value[3])<<16
	if mantissa&0x800000 != 0 {
		mantissa |= ^int32(0xFFFFFF) // sign-extend from 24 bits
	}
	for exp := int(int8(value[4])); exp > 1; exp-- {
		mantissa /= 10
	}
	return Measurement{
		Flags:      flags,
		Hundredths: mantissa,
		Fahrenheit: flags&0x01 != 0,
	}, nil
}

// Display renders the value as two digits, a decimal point, and a tenths
// digit ("23.5"). Four rendered digits cover [0, 9999] hundredths; values
// outside that range are clamped to the nearest bound.
func (m Measurement) Display() string {
	v := m.Hundredths
	if v < 0 {
		v = 0
	}
	if v > 9999 {
		v = 9999
	}
	return fmt.Sprintf("%d%d.%d", v/1000, v/100%10, v/10%10)
}

// Unit is "F" when flags bit 0 is set, otherwise "C".
func (m Measurement) Unit() string {
	if m.Fahrenheit {
		return "F"
	}
	return "C"
}
