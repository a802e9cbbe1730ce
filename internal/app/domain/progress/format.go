package progress

import (
	"fmt"
	"math"
	"strconv"
)

// FormatNumber abbreviates large counts: 1500 -> "1.5K", 2300000 -> "2.3M".
func FormatNumber(n float64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", n/1_000_000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return trimFloat(n)
}

// FormatFileSize renders a byte count with binary units and at most two
// decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	return trimFloat(round2(v)) + " " + sizes[i]
}

// FormatWeight renders "100kg" or "225.5lbs".
func FormatWeight(w float64, unit string) string {
	return trimFloat(w) + unit
}

// FormatExerciseProgress renders one set for display.
func FormatExerciseProgress(ex Exercise, weight float64, reps int, unit string) string {
	if ex.IsWeighted() {
		return fmt.Sprintf("%s x %d", FormatWeight(weight, unit), reps)
	}
	return fmt.Sprintf("%d reps", reps)
}

func FormatCalories(c int) string {
	return fmt.Sprintf("%d kcal", c)
}

func FormatMacros(protein, carbs, fat float64) string {
	return fmt.Sprintf("P: %sg | C: %sg | F: %sg", trimFloat(protein), trimFloat(carbs), trimFloat(fat))
}

// TruncateText cuts text to max runes and appends "...".
func TruncateText(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
