package pgcopy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PostgreSQL numeric sign field values.
const (
	numericPositive = 0x0000
	numericNegative = 0x4000
	numericNaN      = 0xC000
	numericPosInf   = 0xD000
	numericNegInf   = 0xF000
)

// numericDigitChars is the decimal width of one base-10000 digit group.
const numericDigitChars = 4

// decodeNumeric converts a PostgreSQL numeric field payload to its decimal
// string form. The payload is the header {ndigits, weight, sign, dscale}
// followed by ndigits int16 base-10000 digits.
func decodeNumeric(cur *Cursor) (string, error) {
	start := cur.Offset()
	ndigits, err := cur.ReadInt16()
	if err != nil {
		return "", err
	}
	weight, err := cur.ReadInt16()
	if err != nil {
		return "", err
	}
	sign, err := cur.ReadUint16()
	if err != nil {
		return "", err
	}
	dscale, err := cur.ReadInt16()
	if err != nil {
		return "", err
	}

	switch sign {
	case numericNaN:
		return "nan", nil
	case numericPosInf:
		return "inf", nil
	case numericNegInf:
		return "-inf", nil
	case numericPositive, numericNegative:
	default:
		return "", &CopyError{Offset: start, Err: fmt.Errorf("%w: sign 0x%04x", ErrNumericFormat, sign)}
	}
	if ndigits < 0 || dscale < 0 {
		return "", &CopyError{Offset: start, Err: fmt.Errorf("%w: ndigits %d, dscale %d", ErrNumericFormat, ndigits, dscale)}
	}

	digits := make([]int16, ndigits)
	for i := range digits {
		d, err := cur.ReadInt16()
		if err != nil {
			return "", err
		}
		if d < 0 || d > 9999 {
			return "", &CopyError{Offset: cur.Offset() - 2, Err: fmt.Errorf("%w: digit %d", ErrNumericFormat, d)}
		}
		digits[i] = d
	}

	digitAt := func(i int) int16 {
		if i >= 0 && i < int(ndigits) {
			return digits[i]
		}
		return 0
	}

	var sb strings.Builder
	if sign == numericNegative {
		sb.WriteByte('-')
	}

	// Integer part: the first nonzero base-10000 digit prints without leading
	// zeros, every later digit prints zero-padded to four characters.
	emitted := false
	for i := 0; i <= int(weight); i++ {
		d := digitAt(i)
		if !emitted {
			if d == 0 {
				continue
			}
			fmt.Fprintf(&sb, "%d", d)
			emitted = true
		} else {
			fmt.Fprintf(&sb, "%04d", d)
		}
	}
	if !emitted {
		sb.WriteByte('0')
	}

	// Fractional part: exactly dscale characters.
	if dscale > 0 {
		sb.WriteByte('.')
		var frac strings.Builder
		for i := int(weight) + 1; frac.Len() < int(dscale); i++ {
			fmt.Fprintf(&frac, "%04d", digitAt(i))
		}
		sb.WriteString(frac.String()[:dscale])
	}

	return sb.String(), nil
}

// encodeNumeric appends the PostgreSQL numeric payload for a decimal string.
// Accepts "nan", "inf", "+inf" and "-inf" (any case) for the special values;
// everything else must parse as a decimal number. The display scale is taken
// from the canonical form of the input, so trailing zeros are preserved.
func encodeNumeric(buf *WriteBuffer, s string) error {
	// PostgreSQL emits infinities with 0x20 in the dscale slot; NaN carries 0.
	switch strings.ToLower(s) {
	case "nan":
		writeNumericSpecial(buf, numericNaN, 0)
		return nil
	case "inf", "+inf", "infinity", "+infinity":
		writeNumericSpecial(buf, numericPosInf, 0x20)
		return nil
	case "-inf", "-infinity":
		writeNumericSpecial(buf, numericNegInf, 0x20)
		return nil
	}

	dec, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrNumericFormat, s, err)
	}

	// Canonical digit form: optional sign, integer digits, optional fraction.
	// String drops trailing fractional zeros, so a value with a fractional
	// exponent is printed at that exact scale instead.
	text := dec.String()
	if exp := dec.Exponent(); exp < 0 {
		text = dec.StringFixed(-exp)
	}
	sign := uint16(numericPositive)
	if strings.HasPrefix(text, "-") {
		sign = numericNegative
		text = text[1:]
	}
	intPart, fracPart, _ := strings.Cut(text, ".")
	dscale := len(fracPart)

	// Chunk into base-10000 digits: left-pad the integer part and right-pad
	// the fractional part to multiples of four characters.
	if pad := len(intPart) % numericDigitChars; pad != 0 {
		intPart = strings.Repeat("0", numericDigitChars-pad) + intPart
	}
	if pad := len(fracPart) % numericDigitChars; pad != 0 {
		fracPart = fracPart + strings.Repeat("0", numericDigitChars-pad)
	}

	all := intPart + fracPart
	digits := make([]int16, 0, len(all)/numericDigitChars)
	for i := 0; i < len(all); i += numericDigitChars {
		var d int16
		for _, ch := range all[i : i+numericDigitChars] {
			d = d*10 + int16(ch-'0')
		}
		digits = append(digits, d)
	}
	weight := len(intPart)/numericDigitChars - 1

	// Trim zero digits from both ends; leading trims shift the weight.
	for len(digits) > 0 && digits[0] == 0 {
		digits = digits[1:]
		weight--
	}
	for len(digits) > 0 && digits[len(digits)-1] == 0 {
		digits = digits[:len(digits)-1]
	}
	if len(digits) == 0 {
		// Zero keeps its display scale but carries no digits.
		weight = 0
		sign = numericPositive
	}

	buf.WriteInt16(int16(len(digits)))
	buf.WriteInt16(int16(weight))
	buf.WriteUint16(sign)
	buf.WriteInt16(int16(dscale))
	for _, d := range digits {
		buf.WriteInt16(d)
	}
	return nil
}

func writeNumericSpecial(buf *WriteBuffer, sign uint16, dscale int16) {
	buf.WriteInt16(0) // ndigits
	buf.WriteInt16(0) // weight
	buf.WriteUint16(sign)
	buf.WriteInt16(dscale)
}
