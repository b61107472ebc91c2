// Firma XMLDSig enveloped para eventos e-Financeira.
// La firma <Signature> se agrega como último hijo del elemento firmado (Reference URI="#id").

package signer

import (
	"crypto"
	"crypto/rsa"
	"fmt"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jhoicas/efinanceira-signer/internal/domain"
	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// KeyPair es lo que el firmante necesita de una credencial.
type KeyPair interface {
	Signer() crypto.Signer
	Chain() [][]byte
}

// SignatureInfo resume una firma producida (para logs y recibos).
type SignatureInfo struct {
	EventIndex  int
	Element     string
	ReferenceID string
	Algorithm   efinanceira.AlgorithmPair
	DigestValue string
}

// CanonicalSigner construye el bloque Signature para un elemento con un par de algoritmos fijo.
type CanonicalSigner struct {
	hashAvailable func(crypto.Hash) bool
}

func NewCanonicalSigner() *CanonicalSigner {
	return &CanonicalSigner{hashAvailable: crypto.Hash.Available}
}

// SignElement firma el primer elemento con nombre local target y agrega la firma al documento.
func (s *CanonicalSigner) SignElement(doc *etree.Document, target string, kp KeyPair, pair efinanceira.AlgorithmPair) (SignatureInfo, error) {
	el, sig, info, err := s.construct(doc.Root(), target, kp, pair)
	if err != nil {
		return SignatureInfo{}, err
	}
	removeSignatures(el)
	el.AddChild(sig)
	return info, nil
}

// construct arma la firma sin tocar el árbol; devuelve el elemento objetivo y el Signature listo.
func (s *CanonicalSigner) construct(root *etree.Element, target string, kp KeyPair, pair efinanceira.AlgorithmPair) (*etree.Element, *etree.Element, SignatureInfo, error) {
	el := findFirst(root, target)
	if el == nil {
		return nil, nil, SignatureInfo{}, &efinanceira.TargetError{Kind: efinanceira.ErrElementNotFound, Element: target}
	}
	id := el.SelectAttrValue(IDAttribute, "")
	if id == "" {
		return nil, nil, SignatureInfo{}, &efinanceira.TargetError{Kind: efinanceira.ErrMissingIDAttribute, Element: target}
	}

	scoped := scopedCopy(el)
	removeSignatures(scoped)

	sig, err := s.buildSignature(scoped, kp, pair)
	if err != nil {
		return nil, nil, SignatureInfo{}, err
	}
	return el, sig, SignatureInfo{
		Element:     target,
		ReferenceID: id,
		Algorithm:   pair,
		DigestValue: elementText(sig, "./SignedInfo/Reference/DigestValue"),
	}, nil
}

func (s *CanonicalSigner) buildSignature(el *etree.Element, kp KeyPair, pair efinanceira.AlgorithmPair) (*etree.Element, error) {
	if !s.hashAvailable(pair.Hash) {
		return nil, unavailable(pair, fmt.Errorf("hash %v no registrado", pair.Hash))
	}
	signer := kp.Signer()
	if signer == nil {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrNoPrivateKey}
	}
	if _, ok := signer.Public().(*rsa.PublicKey); !ok {
		return nil, &efinanceira.AlgorithmError{Kind: efinanceira.ErrSignatureComputation, Algorithm: pair.Name,
			Cause: fmt.Errorf("la llave no es RSA (%T)", signer.Public())}
	}

	ctx, err := dsig.NewSigningContext(signer, kp.Chain())
	if err != nil {
		return nil, &efinanceira.AlgorithmError{Kind: efinanceira.ErrSignatureComputation, Algorithm: pair.Name, Cause: err}
	}
	ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()
	ctx.IdAttribute = IDAttribute
	ctx.Prefix = ""
	if err := ctx.SetSignatureMethod(pair.SignatureMethodURI); err != nil {
		return nil, unavailable(pair, err)
	}
	if ctx.GetDigestAlgorithmIdentifier() != pair.DigestMethodURI {
		return nil, unavailable(pair, fmt.Errorf("DigestMethod %s no soportado", pair.DigestMethodURI))
	}

	sig, err := ctx.ConstructSignature(el, true)
	if err != nil {
		return nil, &efinanceira.AlgorithmError{Kind: efinanceira.ErrSignatureComputation, Algorithm: pair.Name, Cause: err}
	}
	return sig, nil
}

// unavailable clasifica la falta de registro del algoritmo. Solo RSA-SHA256 habilita el respaldo a SHA-1.
func unavailable(pair efinanceira.AlgorithmPair, cause error) error {
	kind := efinanceira.ErrSignatureComputation
	if pair.Hash == crypto.SHA256 {
		kind = efinanceira.ErrSHA256Unavailable
	}
	return &efinanceira.AlgorithmError{Kind: kind, Algorithm: pair.Name, Cause: cause}
}

// Service combina firmante, negociación de algoritmo y detección de evento.
type Service struct {
	signer     *CanonicalSigner
	negotiator *Negotiator
	strict     bool
}

// Option configura el Service.
type Option func(*Service)

// WithLogger registra el respaldo a SHA-1 y las fallas de negociación.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.negotiator = NewNegotiator(log) }
}

// WithStrictDetection hace fallar la detección cuando hay más de un tipo de evento en el documento.
func WithStrictDetection(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithCanonicalSigner reemplaza el firmante (tests).
func WithCanonicalSigner(cs *CanonicalSigner) Option {
	return func(s *Service) { s.signer = cs }
}

func NewService(opts ...Option) *Service {
	s := &Service{signer: NewCanonicalSigner(), negotiator: NewNegotiator(zerolog.Nop())}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignDocument firma in situ el elemento target (o el evento detectado si target es vacío).
func (s *Service) SignDocument(doc *etree.Document, target string, kp KeyPair) (SignatureInfo, error) {
	if target == "" {
		tag, err := s.detect(doc.Root())
		if err != nil {
			return SignatureInfo{}, err
		}
		target = tag.ElementName()
	}
	el, sig, info, err := s.negotiate(doc.Root(), target, kp)
	if err != nil {
		return SignatureInfo{}, err
	}
	removeSignatures(el)
	el.AddChild(sig)
	return info, nil
}

// Sign es la variante por bytes: parsea, firma y serializa.
func (s *Service) Sign(xmlBytes []byte, target string, kp KeyPair) ([]byte, SignatureInfo, error) {
	if len(xmlBytes) == 0 {
		return nil, SignatureInfo{}, fmt.Errorf("efin: XML vacío: %w", domain.ErrInvalidInput)
	}
	doc, err := ParseDocument(xmlBytes)
	if err != nil {
		return nil, SignatureInfo{}, err
	}
	info, err := s.SignDocument(doc, target, kp)
	if err != nil {
		return nil, SignatureInfo{}, err
	}
	out, err := SerializeDocument(doc)
	if err != nil {
		return nil, SignatureInfo{}, err
	}
	return out, info, nil
}

// negotiate construye la firma pasando por la máquina de estados SHA-256 -> SHA-1.
func (s *Service) negotiate(root *etree.Element, target string, kp KeyPair) (*etree.Element, *etree.Element, SignatureInfo, error) {
	var (
		el, sig *etree.Element
		info    SignatureInfo
	)
	_, err := s.negotiator.Negotiate(func(pair efinanceira.AlgorithmPair) error {
		var err error
		el, sig, info, err = s.signer.construct(root, target, kp, pair)
		return err
	})
	if err != nil {
		return nil, nil, SignatureInfo{}, err
	}
	return el, sig, info, nil
}

func (s *Service) detect(root *etree.Element) (efinanceira.EventTag, error) {
	if s.strict {
		return DetectStrictElement(root)
	}
	return DetectElement(root)
}
