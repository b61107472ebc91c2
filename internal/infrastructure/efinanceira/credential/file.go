// Carga de credenciales desde .p12/.pfx (PKCS#12).

package credential

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// FromFile carga un contenedor PKCS#12. Errores:
// archivo inexistente -> ErrCredentialNotFound, contraseña incorrecta -> ErrBadPassword,
// sin llave -> ErrNoPrivateKey, KeyUsage sin digitalSignature -> ErrUnauthorizedUsage.
func FromFile(path, password string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: path, Cause: err}
		}
		return nil, fmt.Errorf("efin: leer p12: %w", err)
	}
	return FromPKCS12(data, password, path)
}

// FromPKCS12 decodifica un contenedor ya leído. source solo se usa en mensajes.
func FromPKCS12(data []byte, password, source string) (*Credential, error) {
	// ToPEM admite cadenas completas y contenedores sin llave; Decode exige exactamente un par.
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrBadPassword, Source: source, Cause: err}
		}
		return nil, fmt.Errorf("efin: decodificar p12 %s: %w", source, err)
	}
	return fromPEMBlocks(blocks, source)
}

func fromPEMBlocks(blocks []*pem.Block, source string) (*Credential, error) {
	var (
		certs []*x509.Certificate
		keys  []crypto.Signer
	)
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("efin: parsear certificado de %s: %w", source, err)
			}
			certs = append(certs, cert)
		case "PRIVATE KEY":
			key, err := parsePrivateKey(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("efin: parsear llave de %s: %w", source, err)
			}
			keys = append(keys, key)
		}
	}
	if len(certs) == 0 {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: source,
			Cause: errors.New("el contenedor no tiene certificados")}
	}
	if len(keys) == 0 {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrNoPrivateKey, Source: source}
	}

	key, leaf, ok := matchKey(keys, certs)
	if !ok {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrNoPrivateKey, Source: source,
			Cause: errors.New("ninguna llave corresponde a los certificados del contenedor")}
	}
	if !permitsDigitalSignature(leaf) {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrUnauthorizedUsage, Source: source}
	}

	chain := []*x509.Certificate{leaf}
	for _, c := range certs {
		if c != leaf {
			chain = append(chain, c)
		}
	}
	return New(key, chain, source, nil), nil
}

// matchKey devuelve la primera llave cuyo público coincide con algún certificado.
func matchKey(keys []crypto.Signer, certs []*x509.Certificate) (crypto.Signer, *x509.Certificate, bool) {
	for _, k := range keys {
		pub, ok := k.Public().(interface{ Equal(crypto.PublicKey) bool })
		if !ok {
			continue
		}
		for _, c := range certs {
			if pub.Equal(c.PublicKey) {
				return k, c, true
			}
		}
	}
	return nil, nil, false
}

// parsePrivateKey acepta PKCS#1, SEC1 (EC) y PKCS#8.
func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	signer, ok := k.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("tipo de llave no soportado: %T", k)
	}
	return signer, nil
}
