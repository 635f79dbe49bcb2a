package cardgen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// GeneratePAN returns a Luhn-valid PAN of totalLen digits (13..19) starting with bin.
func GeneratePAN(bin string, totalLen int) (string, error) {
	if err := ValidateBIN(bin); err != nil {
		return "", err
	}
	if totalLen < 13 || totalLen > 19 {
		return "", fmt.Errorf("total length must be 13..19")
	}
	fill := totalLen - 1 - len(bin)
	if fill <= 0 {
		return "", fmt.Errorf("bin too long: %s", bin)
	}
	digits, err := randomDigits(fill)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	body := bin + digits
	return body + luhnCheckDigit(body), nil
}

// GenerateUniquePAN retries GeneratePAN until exists reports an unused PAN.
func GenerateUniquePAN(bin string, totalLen, maxRetries int, exists func(string) (bool, error)) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	for i := 0; i <= maxRetries; i++ {
		pan, err := GeneratePAN(bin, totalLen)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return pan, nil
		}
		used, err := exists(pan)
		if err != nil {
			return "", fmt.Errorf("exists callback: %w", err)
		}
		if !used {
			return pan, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique PAN after %d retries", maxRetries)
}

// randomDigits uses rejection sampling so every digit is equally likely.
func randomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if b := buf[i]; b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

func luhnCheckDigit(body string) string {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return string('0' + byte((10-(sum%10))%10))
}

// ValidatePAN checks length, digits and the Luhn check digit.
func ValidatePAN(pan string) error {
	if pan == "" {
		return fmt.Errorf("pan is required")
	}
	if !IsDigits(pan) {
		return fmt.Errorf("pan must contain digits only")
	}
	if l := len(pan); l < 13 || l > 19 {
		return fmt.Errorf("pan length must be 13..19 digits (got %d)", l)
	}
	if pan[len(pan)-1] != luhnCheckDigit(pan[:len(pan)-1])[0] {
		return fmt.Errorf("invalid luhn check digit")
	}
	return nil
}

func ValidateBIN(bin string) error {
	if bin == "" {
		return fmt.Errorf("bin is required")
	}
	if !IsDigits(bin) {
		return fmt.Errorf("bin must contain digits only")
	}
	switch len(bin) {
	case 6, 8, 9:
		return nil
	default:
		return fmt.Errorf("bin must be 6, 8, or 9 digits")
	}
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// StripCheckDigit returns the PAN without its trailing Luhn digit.
func StripCheckDigit(pan string) string {
	if len(pan) == 0 {
		return pan
	}
	return pan[:len(pan)-1]
}

// MaskPAN keeps the BIN and the last four digits, e.g. 421234******1234.
func MaskPAN(pan string) string {
	cleaned := NormalizePAN(pan)
	n := len(cleaned)
	switch {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n < 10:
		return strings.Repeat("*", n-4) + cleaned[n-4:]
	}
	return cleaned[:6] + strings.Repeat("*", n-10) + cleaned[n-4:]
}

// NormalizePAN drops spaces, tabs and dashes.
func NormalizePAN(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(s))
}
