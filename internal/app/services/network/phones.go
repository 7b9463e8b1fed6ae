package network

import (
	"sort"
	"strings"
)

// suffixDigits is the length of the national-number suffix used for fuzzy
// phone matching.
const suffixDigits = 10

// NormalizePhone reduces a phone number to its comparison key: digits only,
// with a country code. A leading "+" means the code is already present; bare
// ten-digit numbers are assumed to be North American and get a "1" prefix.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if strings.HasPrefix(cleaned, "+") {
		return strings.ReplaceAll(cleaned, "+", "")
	}
	digits := strings.ReplaceAll(cleaned, "+", "")
	if len(digits) == 10 {
		return "1" + digits
	}
	return digits
}

// NormalizePhones normalizes, dedupes and sorts phones, dropping empties.
func NormalizePhones(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		n := NormalizePhone(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PhoneSuffixes returns the distinct trailing digits used for approximate
// matching. Numbers shorter than the suffix only match exactly.
func PhoneSuffixes(normalized []string) []string {
	seen := make(map[string]struct{}, len(normalized))
	var out []string
	for _, p := range normalized {
		if len(p) < suffixDigits {
			continue
		}
		s := p[len(p)-suffixDigits:]
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NormalizeEmails trims, lowercases, dedupes and sorts emails.
func NormalizeEmails(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		n := strings.ToLower(strings.TrimSpace(e))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
