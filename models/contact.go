// ABOUTME: Contact-method predicates and normalization helpers for Person records
// ABOUTME: Explicit placeholder flags are authoritative; sentinel checks exist only for legacy rows
package models

import (
	"strings"
	"unicode"
)

// Legacy sentinel conventions from imported data. Do not extend; set PlaceholderFlags instead.
var (
	legacyEmailSentinels = []string{"@placeholder.local", "@example.invalid", "noemail@", "placeholder@"}
	legacyPhoneSentinels = []string{"0000000000", "5555555555"}
)

func isLegacyEmailSentinel(email string) bool {
	e := NormalizeEmail(email)
	for _, s := range legacyEmailSentinels {
		if strings.Contains(e, s) {
			return true
		}
	}
	return false
}

func isLegacyPhoneSentinel(phone string) bool {
	p := NormalizePhone(phone)
	if p == "" {
		return false
	}
	for _, s := range legacyPhoneSentinels {
		if p == s {
			return true
		}
	}
	return strings.Trim(p, "0") == ""
}

// RealEmails returns the email values that count as real contact methods.
func (p *Person) RealEmails() []string {
	if p.IsPlaceholder || p.PlaceholderFlags.Email {
		return nil
	}
	var out []string
	for _, e := range []string{p.WorkEmail, p.PersonalEmail} {
		if strings.TrimSpace(e) != "" && !isLegacyEmailSentinel(e) {
			out = append(out, e)
		}
	}
	return out
}

// RealPhones returns the phone values that count as real contact methods.
func (p *Person) RealPhones() []string {
	if p.IsPlaceholder || p.PlaceholderFlags.Phone {
		return nil
	}
	var out []string
	for _, ph := range []string{p.WorkPhone, p.PersonalPhone, p.SecondaryPhone} {
		if NormalizePhone(ph) != "" && !isLegacyPhoneSentinel(ph) {
			out = append(out, ph)
		}
	}
	return out
}

// HasRealContact is false for every placeholder Person regardless of field contents.
func (p *Person) HasRealContact() bool {
	if p.IsPlaceholder {
		return false
	}
	return len(p.RealEmails()) > 0 || len(p.RealPhones()) > 0
}

// NeedsCompletion reports whether downstream consumers should prompt for contact details.
func (p *Person) NeedsCompletion() bool {
	return !p.IsCoreUser && !p.HasRealContact()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps digits only and drops a leading North American country code.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

// NormalizeName lowercases and collapses whitespace for exact name comparison.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeAliases lowercases, trims and dedupes aliases, preserving first-seen order.
func NormalizeAliases(aliases []string) []string {
	seen := make(map[string]bool, len(aliases))
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		n := NormalizeName(a)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
