// Package format holds the pure input-mask and validation helpers for
// Brazilian identifiers: CEP, phone numbers and CPF. The functions are
// total and stateless; they run on every keystroke for live masking and
// again on the normalized value at submit time, since pasted input can
// bypass incremental masking.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var cepPattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// NormalizeCEP reduces a CEP to its digits, truncated to 8.
func NormalizeCEP(s string) string {
	d := Digits(s)
	if len(d) > 8 {
		d = d[:8]
	}
	return d
}

// CEP progressively masks a CEP as NNNNN-NNN. The hyphen appears once the
// sixth digit is typed; input beyond 8 digits is truncated.
func CEP(s string) string {
	d := NormalizeCEP(s)
	if len(d) <= 5 {
		return d
	}
	return d[:5] + "-" + d[5:]
}

// ValidCEP reports whether s is a complete CEP, masked or not.
func ValidCEP(s string) bool {
	return cepPattern.MatchString(s)
}

// Phone progressively masks a local phone number: two-digit area code,
// then a 4–5 digit prefix, then the suffix. "21987654321" becomes
// "(21) 98765-4321".
func Phone(s string) string {
	d := Digits(s)
	if len(d) > 11 {
		d = d[:11]
	}
	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 2:
		return "(" + d
	case len(d) <= 6:
		return fmt.Sprintf("(%s) %s", d[:2], d[2:])
	case len(d) <= 10:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:6], d[6:])
	default:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:7], d[7:])
	}
}

// ValidPhone reports whether s parses as a valid Brazilian phone number.
func ValidPhone(s string) bool {
	num, err := phonenumbers.Parse(s, "BR")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// CPF progressively masks the 11-digit taxpayer id as NNN.NNN.NNN-NN.
func CPF(s string) string {
	d := Digits(s)
	if len(d) > 11 {
		d = d[:11]
	}
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return fmt.Sprintf("%s.%s", d[:3], d[3:])
	case len(d) <= 9:
		return fmt.Sprintf("%s.%s.%s", d[:3], d[3:6], d[6:])
	default:
		return fmt.Sprintf("%s.%s.%s-%s", d[:3], d[3:6], d[6:9], d[9:])
	}
}

// ValidCPF validates the CPF check digits. Repdigit sequences like
// "11111111111" pass the arithmetic but are rejected.
func ValidCPF(s string) bool {
	d := Digits(s)
	if len(d) != 11 {
		return false
	}
	allSame := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}
	return cpfCheckDigit(d, 9) == int(d[9]-'0') && cpfCheckDigit(d, 10) == int(d[10]-'0')
}

func cpfCheckDigit(d string, pos int) int {
	sum := 0
	for i := 0; i < pos; i++ {
		sum += int(d[i]-'0') * (pos + 1 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return rest
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail does a shape check, not RFC enforcement.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
