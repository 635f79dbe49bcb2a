//go:build softhsm

package hsm

import (
	"encoding/hex"
	"fmt"

	"github.com/miekg/pkcs11"

	"github.com/alovak/atm-playground/internal/security"
)

// SoftHSMProvider computes the PVV as a 3DES MAC inside a PKCS#11 token
// and decimalizes the result. Enabled with the softhsm build tag.
type SoftHSMProvider struct {
	libPath  string
	slotID   uint
	pin      string
	pvkLabel string
	p11      *pkcs11.Ctx
	sess     pkcs11.SessionHandle
	pvk      pkcs11.ObjectHandle
}

func NewSoftHSMProvider(libPath string, slotID uint, pin, pvkLabel string) *SoftHSMProvider {
	return &SoftHSMProvider{libPath: libPath, slotID: slotID, pin: pin, pvkLabel: pvkLabel}
}

func (p *SoftHSMProvider) Open() error {
	p.p11 = pkcs11.New(p.libPath)
	if p.p11 == nil {
		return fmt.Errorf("load pkcs11 lib failed")
	}
	if err := p.p11.Initialize(); err != nil {
		return err
	}
	sess, err := p.p11.OpenSession(p.slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		_ = p.p11.Finalize()
		return err
	}
	p.sess = sess
	if err := p.p11.Login(p.sess, pkcs11.CKU_USER, p.pin); err != nil {
		_ = p.p11.CloseSession(p.sess)
		_ = p.p11.Finalize()
		return err
	}

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, p.pvkLabel),
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_DES3),
	}
	if err := p.p11.FindObjectsInit(p.sess, template); err != nil {
		return err
	}
	objs, _, err := p.p11.FindObjects(p.sess, 1)
	_ = p.p11.FindObjectsFinal(p.sess)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		return fmt.Errorf("pvk not found by label=%s", p.pvkLabel)
	}
	p.pvk = objs[0]
	return nil
}

func (p *SoftHSMProvider) Close() {
	if p.p11 == nil {
		return
	}
	if p.sess != 0 {
		_ = p.p11.Logout(p.sess)
		_ = p.p11.CloseSession(p.sess)
	}
	_ = p.p11.Finalize()
	p.p11.Destroy()
	p.p11 = nil
}

func (p *SoftHSMProvider) ComputePVV(panNoCD string, pin int) (string, error) {
	if p.p11 == nil {
		return "", fmt.Errorf("provider is not open")
	}
	if len(panNoCD) < 11 {
		return "", fmt.Errorf("panNoCD too short")
	}
	// transformation data: rightmost 11 PAN digits, key index 1, PIN
	data := []byte(fmt.Sprintf("%s1%04d", panNoCD[len(panNoCD)-11:], pin))
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_DES3_MAC, nil)}
	if err := p.p11.SignInit(p.sess, mech, p.pvk); err != nil {
		return "", err
	}
	mac, err := p.p11.Sign(p.sess, data)
	if err != nil {
		return "", err
	}
	return decimalize(mac, 4), nil
}

// decimalize takes decimal digits of the hex MAC first, then maps a..f to 0..5.
func decimalize(mac []byte, n int) string {
	hx := hex.EncodeToString(mac)
	out := make([]byte, 0, n)
	for i := 0; i < len(hx) && len(out) < n; i++ {
		if hx[i] >= '0' && hx[i] <= '9' {
			out = append(out, hx[i])
		}
	}
	for i := 0; i < len(hx) && len(out) < n; i++ {
		if hx[i] >= 'a' {
			out = append(out, '0'+(hx[i]-'a'))
		}
	}
	return string(out)
}

var _ security.PVVProvider = (*SoftHSMProvider)(nil)
