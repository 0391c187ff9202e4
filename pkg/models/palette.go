package models

// Palette is the fixed, ordered set of display colors assigned to
// participants. The Nth distinct participant to join a session (0-indexed)
// receives Palette[N mod len(Palette)], so color assignment is deterministic
// given join order.
var Palette = []string{
	"#2563eb", // blue
	"#16a34a", // green
	"#d97706", // amber
	"#dc2626", // red
	"#9333ea", // purple
	"#0891b2", // cyan
	"#db2777", // pink
	"#65a30d", // lime
}

// ColorForIndex returns the palette color for the n-th joining participant.
// Negative indexes are treated as 0.
func ColorForIndex(n int) string {
	if n < 0 {
		n = 0
	}
	return Palette[n%len(Palette)]
}
