/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package scoring evaluates submitted answers and computes experience points.
// Everything here is pure: no clocks, no I/O, no shared state.
package scoring

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares an answer for comparison. It trims and collapses
// whitespace, composes to NFC and lower-cases with German rules, so "ÄPFEL"
// and "äpfel" compare equal while "ä" and "a" stay distinct. "ß" is never
// expanded to "ss"; capital "ẞ" lowers to "ß".
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = norm.NFC.String(s)

	return cases.Lower(language.German).String(s)
}
