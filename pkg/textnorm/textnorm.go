// Package textnorm holds the comparison forms used to match patients and
// practitioners: digits-only phones and accent-free lowercase names.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PhoneSuffixLen is the number of trailing digits used for indexed phone lookup.
const PhoneSuffixLen = 8

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneSuffix returns the last PhoneSuffixLen digits of a phone number, or
// all of them when the number is shorter.
func PhoneSuffix(phone string) string {
	d := Digits(phone)
	if len(d) > PhoneSuffixLen {
		return d[len(d)-PhoneSuffixLen:]
	}
	return d
}

// SamePhone reports whether two phone numbers have identical digits.
func SamePhone(a, b string) bool {
	da, db := Digits(a), Digits(b)
	return da != "" && da == db
}

// Name lowercases s, strips diacritics and collapses inner whitespace.
// "  Benali  Amina" and "bénali amina" compare equal.
func Name(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// SameName compares two names in normalized form.
func SameName(a, b string) bool {
	return Name(a) == Name(b)
}
