package iso8583

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/alovak/atm-playground/internal/cardgen"
)

// EncodePINBlock builds a clear ISO 9564 format 0 PIN block.
func EncodePINBlock(pin int, pan string) ([]byte, error) {
	digits := fmt.Sprintf("%04d", pin)
	if pin < 0 || len(digits) > 12 {
		return nil, fmt.Errorf("pin must have 4..12 digits")
	}

	pinField := "0" + strconv.FormatInt(int64(len(digits)), 16) + digits
	pinField += strings.Repeat("F", 16-len(pinField))

	pinBytes, err := hex.DecodeString(pinField)
	if err != nil {
		return nil, fmt.Errorf("decoding pin field: %w", err)
	}

	panBytes, err := panField(pan)
	if err != nil {
		return nil, err
	}

	block := make([]byte, 8)
	for i := range block {
		block[i] = pinBytes[i] ^ panBytes[i]
	}

	return block, nil
}

// DecodePINBlock recovers the PIN from a clear format 0 block.
func DecodePINBlock(block []byte, pan string) (int, error) {
	if len(block) != 8 {
		return 0, fmt.Errorf("pin block must be 8 bytes (got %d)", len(block))
	}

	panBytes, err := panField(pan)
	if err != nil {
		return 0, err
	}

	plain := make([]byte, 8)
	for i := range plain {
		plain[i] = block[i] ^ panBytes[i]
	}

	field := strings.ToUpper(hex.EncodeToString(plain))
	if field[0] != '0' {
		return 0, fmt.Errorf("unsupported pin block format %c", field[0])
	}

	n, err := strconv.ParseInt(field[1:2], 16, 8)
	if err != nil || n < 4 || n > 12 {
		return 0, fmt.Errorf("invalid pin length")
	}

	digits := field[2 : 2+n]
	if !cardgen.IsDigits(digits) || strings.Trim(field[2+n:], "F") != "" {
		return 0, fmt.Errorf("malformed pin block")
	}

	return strconv.Atoi(digits)
}

// panField is 0000 followed by the 12 rightmost PAN digits before the check digit.
func panField(pan string) ([]byte, error) {
	body := cardgen.StripCheckDigit(cardgen.NormalizePAN(pan))
	if len(body) < 12 || !cardgen.IsDigits(body) {
		return nil, fmt.Errorf("pan too short for pin block")
	}

	return hex.DecodeString("0000" + body[len(body)-12:])
}
