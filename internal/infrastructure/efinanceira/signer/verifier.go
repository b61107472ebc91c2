package signer

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// VerificationResult detalla la validación de una firma.
type VerificationResult struct {
	Element         string
	ReferenceURI    string
	SignatureMethod string
	Subject         string
	Valid           bool
	Err             error
}

// Verifier valida firmas embebidas contra la llave pública del certificado incluido.
// La vigencia del certificado solo se exige si At no es cero: en ese caso el certificado debe
// ser válido en ese instante.
type Verifier struct {
	At time.Time
}

// Verify es el predicado: true solo si hay al menos una firma y todas son válidas.
// Nunca entra en pánico ni devuelve error.
func Verify(doc *etree.Document) bool {
	return Verifier{}.Verify(doc)
}

func (v Verifier) Verify(doc *etree.Document) bool {
	results := v.VerifyDetailed(doc)
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Valid {
			return false
		}
	}
	return true
}

// VerifyBytes parsea y verifica; XML inválido es simplemente false.
func (v Verifier) VerifyBytes(xmlBytes []byte) bool {
	doc, err := ParseDocument(xmlBytes)
	if err != nil {
		return false
	}
	return v.Verify(doc)
}

// VerifyBytesDetailed parsea y devuelve el detalle; el único error es de parseo.
func (v Verifier) VerifyBytesDetailed(xmlBytes []byte) ([]VerificationResult, error) {
	doc, err := ParseDocument(xmlBytes)
	if err != nil {
		return nil, err
	}
	return v.VerifyDetailed(doc), nil
}

// VerifyDetailed devuelve un resultado por cada <Signature> del namespace XMLDSig.
func (v Verifier) VerifyDetailed(doc *etree.Document) (results []VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			results = append(results, VerificationResult{Err: fmt.Errorf("efin: pánico verificando: %v", r)})
		}
	}()
	if doc == nil || doc.Root() == nil {
		return nil
	}

	var sigs []*etree.Element
	walk(doc.Root(), func(el *etree.Element) {
		if isSignature(el) {
			sigs = append(sigs, el)
		}
	})
	for _, sig := range sigs {
		results = append(results, v.verifyOne(sig))
	}
	return results
}

func (v Verifier) verifyOne(sig *etree.Element) (res VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			res.Valid = false
			res.Err = fmt.Errorf("efin: pánico verificando: %v", r)
		}
	}()

	res.SignatureMethod = attrOf(sig, "./SignedInfo/SignatureMethod", "Algorithm")
	res.ReferenceURI = attrOf(sig, "./SignedInfo/Reference", "URI")

	parent := sig.Parent()
	if parent == nil || parent.Tag == "" {
		res.Err = errors.New("efin: la firma no está dentro de un elemento")
		return res
	}
	res.Element = parent.Tag

	if _, ok := efinanceira.PairForSignatureMethod(res.SignatureMethod); !ok {
		res.Err = fmt.Errorf("efin: SignatureMethod no permitido: %q", res.SignatureMethod)
		return res
	}
	switch digest := attrOf(sig, "./SignedInfo/Reference/DigestMethod", "Algorithm"); digest {
	case efinanceira.DigestMethodSHA256, efinanceira.DigestMethodSHA1:
	default:
		res.Err = fmt.Errorf("efin: DigestMethod no permitido: %q", digest)
		return res
	}

	cert, err := embeddedCertificate(sig)
	if err != nil {
		res.Err = err
		return res
	}
	res.Subject = cert.Subject.String()

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}})
	ctx.IdAttribute = IDAttribute
	at := v.At
	if at.IsZero() {
		at = cert.NotBefore
	}
	ctx.Clock = dsig.NewFakeClockAt(at)
	if _, err := ctx.Validate(scopedCopy(parent)); err != nil {
		res.Err = fmt.Errorf("efin: firma inválida: %w", err)
		return res
	}
	res.Valid = true
	return res
}

func embeddedCertificate(sig *etree.Element) (*x509.Certificate, error) {
	raw := elementText(sig, "./KeyInfo/X509Data/X509Certificate")
	if raw == "" {
		return nil, errors.New("efin: KeyInfo sin X509Certificate")
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(raw), ""))
	if err != nil {
		return nil, fmt.Errorf("efin: X509Certificate no es base64: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("efin: X509Certificate inválido: %w", err)
	}
	return cert, nil
}

func attrOf(el *etree.Element, path, attr string) string {
	found := el.FindElement(path)
	if found == nil {
		return ""
	}
	return found.SelectAttrValue(attr, "")
}
