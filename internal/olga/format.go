package olga

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	perLine = 5
	indent  = "    "
	sep     = "    "

	// zeroLine replaces a block that cannot be rendered.
	zeroLine = indent + ".000000E+00\n"
)

// FormatNumber renders v with a normalized six digit mantissa and an
// implicit leading point: 1234.56 is ".123456E+04", -0.0001 is
// "-.100000E-03". Non-finite values cannot be rendered.
func FormatNumber(v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	if v == 0 {
		return ".000000E+00", true
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	// d.dddddE±xx; shifting the point left bumps the exponent by one.
	s := strconv.FormatFloat(v, 'E', 5, 64)
	exp, err := strconv.Atoi(s[8:])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s.%s%sE%+03d", sign, s[:1], s[2:7], exp+1), true
}

// FormatValues lays values out five per line. If any value cannot be
// rendered the whole block collapses to a single zero line.
func FormatValues(values []float64) string {
	var b strings.Builder
	for start := 0; start < len(values); start += perLine {
		end := min(start+perLine, len(values))
		line := indent
		for _, v := range values[start:end] {
			s, ok := FormatNumber(v)
			if !ok {
				return zeroLine
			}
			line += s + sep
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
