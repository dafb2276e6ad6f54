package laptime

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const NotAvailable = "N/A"

var sixty = decimal.NewFromInt(60)

// Format renders seconds as m:ss.fff, rounded to milliseconds.
func Format(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return NotAvailable
	}
	d := decimal.NewFromFloat(seconds).Round(3)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	minutes := d.Div(sixty).Floor()
	rest := d.Sub(minutes.Mul(sixty))
	secs := rest.StringFixed(3)
	if len(secs) < 6 {
		secs = strings.Repeat("0", 6-len(secs)) + secs
	}
	return fmt.Sprintf("%s%s:%s", sign, minutes.String(), secs)
}

// FormatPtr is Format for optional values. nil yields "N/A".
func FormatPtr(seconds *float64) string {
	if seconds == nil {
		return NotAvailable
	}
	return Format(*seconds)
}
