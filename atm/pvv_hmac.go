//go:build !softhsm

package atm

import "github.com/alovak/atm-playground/internal/security"

func newPVVProvider(config *Config) (security.PVVProvider, func(), error) {
	return security.NewHMACProvider([]byte(config.PVVKey)), func() {}, nil
}
