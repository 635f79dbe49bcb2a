package models

import (
	"errors"
	"fmt"
)

var (
	ErrWrongAmount         = errors.New("wrong money amount")
	ErrUnsupportedCurrency = fmt.Errorf("unsupported currency: %w", ErrWrongAmount)

	ErrCardAuthorization = errors.New("card authorization failed")
	ErrInvalidCard       = fmt.Errorf("invalid card: %w", ErrCardAuthorization)
	ErrIncorrectPIN      = fmt.Errorf("incorrect pin: %w", ErrCardAuthorization)
	ErrCardExpired       = fmt.Errorf("card expired: %w", ErrCardAuthorization)
	ErrCardBlocked       = fmt.Errorf("card blocked: %w", ErrCardAuthorization)

	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrDepot          = errors.New("money depot failure")
	ErrOutOfBanknotes = fmt.Errorf("out of banknotes: %w", ErrDepot)
)
