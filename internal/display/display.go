// Package display formats prediction results for people.
package display

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"house_price/internal/domain"
)

const (
	BandNote        = "There's a 90% chance the actual price falls within this range."
	BandUnavailable = "Confidence range not available."
)

// FormatINR renders a rupee amount with Indian digit grouping: ₹12,34,567.
func FormatINR(v float64) string {
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return sign + "₹" + groupIndian(strconv.FormatInt(n, 10))
}

// groupIndian puts a comma after the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(append(parts, tail), ",")
}

type View struct {
	Price      string `json:"price"`
	HasBand    bool   `json:"has_band"`
	LowerBound string `json:"lower_bound,omitempty"`
	UpperBound string `json:"upper_bound,omitempty"`
	Note       string `json:"note"`
}

func NewView(r domain.PredictionResult) View {
	v := View{Price: FormatINR(r.PredictedPrice), Note: BandUnavailable}
	if ci := r.ConfidenceInterval; ci != nil {
		v.HasBand = true
		v.LowerBound = FormatINR(ci.LowerBound)
		v.UpperBound = FormatINR(ci.UpperBound)
		v.Note = BandNote
	}
	return v
}

// Render writes the result card as plain text.
func Render(w io.Writer, v View) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated Market Value: %s\n", v.Price)
	if v.HasBand {
		fmt.Fprintf(&b, "Confidence Range: %s - %s\n", v.LowerBound, v.UpperBound)
	}
	fmt.Fprintf(&b, "%s\n", v.Note)
	_, err := io.WriteString(w, b.String())
	return err
}
