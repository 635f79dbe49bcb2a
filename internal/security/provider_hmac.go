package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/alovak/atm-playground/internal/cardgen"
)

const domainPVV = "pvv-v1"

var ErrKeyMissing = errors.New("pvv key is required")

// HMACProvider derives a 4 digit PVV with HMAC-SHA256 and dynamic truncation.
// Use the SoftHSM provider where keys must stay in hardware.
type HMACProvider struct {
	key []byte
}

func NewHMACProvider(key []byte) *HMACProvider {
	return &HMACProvider{key: key}
}

func (p *HMACProvider) ComputePVV(panNoCD string, pin int) (string, error) {
	if len(p.key) == 0 {
		return "", ErrKeyMissing
	}
	if err := validateInputs(panNoCD, pin); err != nil {
		return "", err
	}
	msg := []byte(fmt.Sprintf("%s|%04d|%s", panNoCD, pin, domainPVV))
	return truncatedDecimal(p.key, msg, 4), nil
}

func truncatedDecimal(key, msg []byte, width int) string {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	sum := h.Sum(nil)
	off := sum[len(sum)-1] & 0x0f
	code := (uint32(sum[off])&0x7f)<<24 |
		uint32(sum[off+1])<<16 |
		uint32(sum[off+2])<<8 |
		uint32(sum[off+3])
	if width == 4 {
		return fmt.Sprintf("%04d", code%10000)
	}
	return fmt.Sprintf("%03d", code%1000)
}

func validateInputs(panNoCD string, pin int) error {
	if panNoCD == "" || !cardgen.IsDigits(panNoCD) {
		return fmt.Errorf("panNoCD must be digits only")
	}
	if l := len(panNoCD); l < 12 || l > 18 {
		return fmt.Errorf("panNoCD length must be 12..18 (got %d)", l)
	}
	if pin < 0 || pin > 999999 {
		return fmt.Errorf("pin must have 4..6 digits")
	}
	return nil
}

// Wipe zeroes a key buffer. Go does not guarantee copies are gone.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
