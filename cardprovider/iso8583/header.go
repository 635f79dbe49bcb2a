package iso8583

import (
	"errors"
	"fmt"
	"io"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/moov-io/iso8583/network"
)

const (
	mtiAuthorizationRequest  = "0100"
	mtiAuthorizationResponse = "0110"
	processingCashWithdrawal = "010000"
)

// Response codes carried in DE39.
const (
	CodeApproved         = "00"
	CodeInvalidCard      = "14"
	CodeExpiredCard      = "54"
	CodeIncorrectPIN     = "55"
	CodePINTriesExceeded = "75"
	CodeSystemError      = "96"
)

var ErrSystemError = errors.New("card provider system error")

func readMessageLength(r io.Reader) (int, error) {
	header := network.NewBinary2BytesHeader()
	n, err := header.ReadFrom(r)
	if err != nil {
		return n, err
	}

	return header.Length(), nil
}

func writeMessageLength(w io.Writer, length int) (int, error) {
	header := network.NewBinary2BytesHeader()
	header.SetLength(length)

	n, err := header.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("writing message header: %w", err)
	}

	return n, nil
}

func responseCode(err error) string {
	switch {
	case err == nil:
		return CodeApproved
	case errors.Is(err, atmmodels.ErrInvalidCard):
		return CodeInvalidCard
	case errors.Is(err, atmmodels.ErrCardExpired):
		return CodeExpiredCard
	case errors.Is(err, atmmodels.ErrIncorrectPIN):
		return CodeIncorrectPIN
	case errors.Is(err, atmmodels.ErrCardBlocked):
		return CodePINTriesExceeded
	default:
		return CodeSystemError
	}
}

func codeError(code string) error {
	switch code {
	case CodeApproved:
		return nil
	case CodeInvalidCard:
		return atmmodels.ErrInvalidCard
	case CodeExpiredCard:
		return atmmodels.ErrCardExpired
	case CodeIncorrectPIN:
		return atmmodels.ErrIncorrectPIN
	case CodePINTriesExceeded:
		return atmmodels.ErrCardBlocked
	default:
		return fmt.Errorf("response code %q: %w", code, ErrSystemError)
	}
}
