package extract

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// NormalizeDigits replaces full-width numerals (U+FF10..U+FF19) with their
// ASCII counterparts. Every other rune passes through unchanged.
func NormalizeDigits(s string) string {
	if !hasFullwidthDigit(s) {
		return s
	}
	out, _, _ := transform.String(DigitFolder(), s)
	return out
}

// DigitFolder returns the digit fold as a transformer for use on streams.
func DigitFolder() transform.Transformer {
	return runes.Map(foldDigit)
}

func foldDigit(r rune) rune {
	if r >= '０' && r <= '９' {
		return '0' + (r - '０')
	}
	return r
}

func hasFullwidthDigit(s string) bool {
	for _, r := range s {
		if r >= '０' && r <= '９' {
			return true
		}
	}
	return false
}
