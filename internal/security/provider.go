package security

// PVVProvider computes a PIN verification value. Only the PVV is stored;
// a PIN is verified by recomputing the PVV and comparing.
type PVVProvider interface {
	// ComputePVV takes the PAN without its check digit and the PIN.
	ComputePVV(panNoCD string, pin int) (string, error)
}
