//go:build softhsm

package atm

import (
	"fmt"
	"strconv"

	"github.com/alovak/atm-playground/internal/security"
	"github.com/alovak/atm-playground/internal/security/hsm"
)

func newPVVProvider(config *Config) (security.PVVProvider, func(), error) {
	slot, err := strconv.ParseUint(getenv("PKCS11_SLOT", "0"), 10, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing PKCS11_SLOT: %w", err)
	}

	provider := hsm.NewSoftHSMProvider(
		getenv("PKCS11_LIB", "/usr/lib/softhsm/libsofthsm2.so"),
		uint(slot),
		getenv("PKCS11_PIN", ""),
		getenv("PKCS11_PVK_LABEL", "pvk"),
	)
	if err := provider.Open(); err != nil {
		return nil, nil, fmt.Errorf("opening pkcs11 session: %w", err)
	}

	return provider, provider.Close, nil
}
