package tghtml

// TruncRunes caps s at n runes, replacing the overflow with marker so the
// result (marker included) never exceeds n runes. When n is too small to fit
// the marker the text is hard-cut without it.
func TruncRunes(s string, n int, marker string) string {
	if n <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	m := []rune(marker)
	if n <= len(m) {
		return string(rs[:n])
	}
	return string(rs[:n-len(m)]) + marker
}
