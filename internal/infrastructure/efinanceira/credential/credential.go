// Credencial de firma: llave privada (en memoria o en token PKCS#11) más la cadena X.509.

package credential

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Credential es el handle opaco que usa una sesión de firma. Se libera con Close.
type Credential struct {
	signer crypto.Signer
	chain  []*x509.Certificate
	source string

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

// New arma una credencial. chain[0] es el certificado del firmante; signer puede ser nil
// cuando la fuente solo expone el certificado. closeFn libera handles externos (puede ser nil).
func New(signer crypto.Signer, chain []*x509.Certificate, source string, closeFn func() error) *Credential {
	return &Credential{signer: signer, chain: chain, source: source, closeFn: closeFn}
}

// Signer devuelve la llave privada como crypto.Signer (nil si no hay llave).
func (c *Credential) Signer() crypto.Signer { return c.signer }

// Certificate devuelve el certificado del firmante.
func (c *Credential) Certificate() *x509.Certificate {
	if len(c.chain) == 0 {
		return nil
	}
	return c.chain[0]
}

// Chain devuelve la cadena en DER, firmante primero, lista para KeyInfo.
func (c *Credential) Chain() [][]byte {
	out := make([][]byte, 0, len(c.chain))
	for _, cert := range c.chain {
		out = append(out, cert.Raw)
	}
	return out
}

func (c *Credential) HasPrivateKey() bool { return c.signer != nil }

func (c *Credential) KeyUsage() x509.KeyUsage {
	if cert := c.Certificate(); cert != nil {
		return cert.KeyUsage
	}
	return 0
}

// PermitsDigitalSignature es falso solo si el certificado trae la extensión KeyUsage sin digitalSignature.
func (c *Credential) PermitsDigitalSignature() bool {
	cert := c.Certificate()
	if cert == nil {
		return false
	}
	return permitsDigitalSignature(cert)
}

func (c *Credential) ValidityWindow() (notBefore, notAfter time.Time) {
	if cert := c.Certificate(); cert != nil {
		return cert.NotBefore, cert.NotAfter
	}
	return time.Time{}, time.Time{}
}

// Thumbprint es el SHA-1 del certificado en hex mayúscula, como lo muestran los almacenes del SO.
func (c *Credential) Thumbprint() string {
	cert := c.Certificate()
	if cert == nil {
		return ""
	}
	return Thumbprint(cert)
}

// Source describe el origen (ruta del archivo, token, etc.) para logs y recibos.
func (c *Credential) Source() string { return c.source }

// Close libera la sesión del token si existe. Es idempotente.
func (c *Credential) Close() error {
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			c.closeErr = c.closeFn()
		}
	})
	return c.closeErr
}

// borrowed devuelve una vista con la misma llave y cadena cuyo Close no libera nada.
func (c *Credential) borrowed() *Credential {
	return New(c.signer, c.chain, c.source, nil)
}

// Thumbprint calcula la huella SHA-1 de un certificado.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// NormalizeThumbprint quita separadores y pasa a mayúscula ("ab:cd ef" -> "ABCDEF").
func NormalizeThumbprint(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case ' ', ':', '-', '\t', '\u200e':
			continue
		}
		sb.WriteRune(r)
	}
	return strings.ToUpper(sb.String())
}

func permitsDigitalSignature(cert *x509.Certificate) bool {
	if cert.KeyUsage == 0 {
		return true
	}
	return cert.KeyUsage&x509.KeyUsageDigitalSignature != 0
}
