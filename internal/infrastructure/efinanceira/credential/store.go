// Almacén de credenciales de plataforma: token PKCS#11 (tarjeta, token USB o SoftHSM).

package credential

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// tokenAPI es el subconjunto de *pkcs11.Ctx que se usa; permite simular el token en tests.
type tokenAPI interface {
	Initialize() error
	Finalize() error
	Destroy()
	GetSlotList(tokenPresent bool) ([]uint, error)
	GetTokenInfo(slotID uint) (pkcs11.TokenInfo, error)
	OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error)
	CloseSession(sh pkcs11.SessionHandle) error
	Login(sh pkcs11.SessionHandle, userType uint, pin string) error
	Logout(sh pkcs11.SessionHandle) error
	FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error
	FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error)
	FindObjectsFinal(sh pkcs11.SessionHandle) error
	GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error)
	SignInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, o pkcs11.ObjectHandle) error
	Sign(sh pkcs11.SessionHandle, message []byte) ([]byte, error)
}

func openModule(module string) (tokenAPI, error) {
	ctx := pkcs11.New(module)
	if ctx == nil {
		return nil, fmt.Errorf("efin: no se pudo cargar el módulo PKCS#11 %s", module)
	}
	return ctx, nil
}

// Store ubica credenciales dentro de un token PKCS#11.
// Module es la ruta de la librería (.so/.dll), TokenLabel la etiqueta del token (vacío = primer token).
type Store struct {
	Module     string
	TokenLabel string
	PIN        string

	open func(module string) (tokenAPI, error)
}

func NewStore(module, tokenLabel, pin string) *Store {
	return &Store{Module: module, TokenLabel: tokenLabel, PIN: pin, open: openModule}
}

// FromStore busca por huella SHA-1 en el token indicado; se usa la primera coincidencia.
func FromStore(thumbprint, location, storeName, pin string) (*Credential, error) {
	return NewStore(location, storeName, pin).FromStore(thumbprint)
}

// storeEntry es un certificado del token con su llave privada asociada por CKA_ID.
type storeEntry struct {
	cert   *x509.Certificate
	key    pkcs11.ObjectHandle
	hasKey bool
}

type tokenSession struct {
	api      tokenAPI
	sh       pkcs11.SessionHandle
	loggedIn bool
}

func (s *tokenSession) close() error {
	var errs []error
	if s.loggedIn {
		if err := s.api.Logout(s.sh); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.api.CloseSession(s.sh); err != nil {
		errs = append(errs, err)
	}
	if err := s.api.Finalize(); err != nil {
		errs = append(errs, err)
	}
	s.api.Destroy()
	return errors.Join(errs...)
}

// FromStore busca el certificado cuya huella coincide con thumbprint.
func (s *Store) FromStore(thumbprint string) (*Credential, error) {
	want := NormalizeThumbprint(thumbprint)
	if want == "" {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: s.describe(),
			Cause: errors.New("huella vacía")}
	}
	return s.acquire(func(entries []storeEntry) (storeEntry, error) {
		for _, e := range entries {
			if Thumbprint(e.cert) != want {
				continue
			}
			if !e.hasKey {
				return storeEntry{}, &efinanceira.CredentialError{Kind: efinanceira.ErrNoPrivateKey, Source: s.describe() + "/" + want}
			}
			return e, nil
		}
		return storeEntry{}, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: s.describe() + "/" + want}
	})
}

// FromCandidateSelection elige, sin interacción, el primer certificado (ordenado por huella)
// con llave privada y uso de llave compatible con firma digital.
func (s *Store) FromCandidateSelection() (*Credential, error) {
	return s.acquire(func(entries []storeEntry) (storeEntry, error) {
		var candidates []storeEntry
		for _, e := range entries {
			if e.hasKey && permitsDigitalSignature(e.cert) {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			return storeEntry{}, &efinanceira.CredentialError{Kind: efinanceira.ErrNoCandidates, Source: s.describe()}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return Thumbprint(candidates[i].cert) < Thumbprint(candidates[j].cert)
		})
		return candidates[0], nil
	})
}

// acquire abre la sesión, enumera y elige. Si no se devuelve credencial, todo handle queda cerrado.
func (s *Store) acquire(pick func([]storeEntry) (storeEntry, error)) (cred *Credential, err error) {
	sess, err := s.openSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cred == nil {
			_ = sess.close()
		}
	}()

	entries, err := listEntries(sess)
	if err != nil {
		return nil, err
	}
	entry, err := pick(entries)
	if err != nil {
		return nil, err
	}
	if !permitsDigitalSignature(entry.cert) {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrUnauthorizedUsage, Source: s.describe()}
	}

	pub, ok := entry.cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("efin: el certificado del token no es RSA (%T)", entry.cert.PublicKey)
	}
	signer := &tokenSigner{sess: sess, key: entry.key, pub: pub}
	return New(signer, []*x509.Certificate{entry.cert}, s.describe(), sess.close), nil
}

func (s *Store) openSession() (*tokenSession, error) {
	open := s.open
	if open == nil {
		open = openModule
	}
	if s.Module == "" {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound,
			Cause: errors.New("módulo PKCS#11 no configurado")}
	}
	api, err := open(s.Module)
	if err != nil {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: s.Module, Cause: err}
	}
	if err := api.Initialize(); err != nil {
		api.Destroy()
		return nil, fmt.Errorf("efin: inicializar PKCS#11: %w", err)
	}

	slot, err := s.findSlot(api)
	if err != nil {
		_ = api.Finalize()
		api.Destroy()
		return nil, err
	}

	sh, err := api.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		_ = api.Finalize()
		api.Destroy()
		return nil, fmt.Errorf("efin: abrir sesión PKCS#11: %w", err)
	}
	sess := &tokenSession{api: api, sh: sh}
	if s.PIN != "" {
		err := api.Login(sh, pkcs11.CKU_USER, s.PIN)
		switch {
		case err == nil:
			sess.loggedIn = true
		case errors.Is(err, pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN)):
		case errors.Is(err, pkcs11.Error(pkcs11.CKR_PIN_INCORRECT)):
			_ = sess.close()
			return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrBadPassword, Source: s.describe(), Cause: err}
		default:
			_ = sess.close()
			return nil, fmt.Errorf("efin: login PKCS#11: %w", err)
		}
	}
	return sess, nil
}

func (s *Store) findSlot(api tokenAPI) (uint, error) {
	slots, err := api.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("efin: listar slots PKCS#11: %w", err)
	}
	for _, slot := range slots {
		if s.TokenLabel == "" {
			return slot, nil
		}
		info, err := api.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if strings.TrimSpace(info.Label) == s.TokenLabel {
			return slot, nil
		}
	}
	return 0, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: s.describe(),
		Cause: errors.New("token no presente")}
}

func (s *Store) describe() string {
	if s.TokenLabel == "" {
		return "pkcs11:" + s.Module
	}
	return "pkcs11:" + s.Module + "#" + s.TokenLabel
}

func listEntries(sess *tokenSession) ([]storeEntry, error) {
	handles, err := findAll(sess, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE),
	})
	if err != nil {
		return nil, err
	}

	var entries []storeEntry
	for _, h := range handles {
		attrs, err := sess.api.GetAttributeValue(sess.sh, h, []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
			pkcs11.NewAttribute(pkcs11.CKA_ID, nil),
		})
		if err != nil {
			return nil, fmt.Errorf("efin: leer certificado PKCS#11: %w", err)
		}
		var der, id []byte
		for _, a := range attrs {
			switch a.Type {
			case pkcs11.CKA_VALUE:
				der = a.Value
			case pkcs11.CKA_ID:
				id = a.Value
			}
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			continue
		}
		entry := storeEntry{cert: cert}
		if len(id) > 0 {
			keys, err := findAll(sess, []*pkcs11.Attribute{
				pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
				pkcs11.NewAttribute(pkcs11.CKA_ID, id),
			})
			if err != nil {
				return nil, err
			}
			if len(keys) > 0 {
				entry.key, entry.hasKey = keys[0], true
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func findAll(sess *tokenSession, template []*pkcs11.Attribute) ([]pkcs11.ObjectHandle, error) {
	if err := sess.api.FindObjectsInit(sess.sh, template); err != nil {
		return nil, fmt.Errorf("efin: buscar objetos PKCS#11: %w", err)
	}
	defer sess.api.FindObjectsFinal(sess.sh)

	var out []pkcs11.ObjectHandle
	for {
		objs, _, err := sess.api.FindObjects(sess.sh, 16)
		if err != nil {
			return nil, fmt.Errorf("efin: buscar objetos PKCS#11: %w", err)
		}
		if len(objs) == 0 {
			return out, nil
		}
		out = append(out, objs...)
	}
}

// tokenSigner firma con CKM_RSA_PKCS sobre un DigestInfo; la llave nunca sale del token.
type tokenSigner struct {
	mu   sync.Mutex
	sess *tokenSession
	key  pkcs11.ObjectHandle
	pub  *rsa.PublicKey
}

func (t *tokenSigner) Public() crypto.PublicKey { return t.pub }

func (t *tokenSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if _, ok := opts.(*rsa.PSSOptions); ok {
		return nil, errors.New("efin: RSA-PSS no soportado por el token")
	}
	data, err := wrapDigestInfo(opts.HashFunc(), digest)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
	if err := t.sess.api.SignInit(t.sess.sh, mech, t.key); err != nil {
		return nil, fmt.Errorf("efin: SignInit PKCS#11: %w", err)
	}
	sig, err := t.sess.api.Sign(t.sess.sh, data)
	if err != nil {
		return nil, fmt.Errorf("efin: Sign PKCS#11: %w", err)
	}
	return sig, nil
}

var digestInfoOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA1:   {1, 3, 14, 3, 2, 26},
	crypto.SHA256: {2, 16, 840, 1, 101, 3, 4, 2, 1},
}

// wrapDigestInfo arma el DigestInfo PKCS#1 v1.5 que espera CKM_RSA_PKCS.
func wrapDigestInfo(h crypto.Hash, digest []byte) ([]byte, error) {
	oid, ok := digestInfoOIDs[h]
	if !ok {
		return nil, fmt.Errorf("efin: hash %v no soportado por el token", h)
	}
	if len(digest) != h.Size() {
		return nil, fmt.Errorf("efin: digest de %d bytes para %v", len(digest), h)
	}

	type algorithmIdentifier struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.RawValue `asn1:"optional"`
	}
	type digestInfo struct {
		DigestAlgorithm algorithmIdentifier
		Digest          []byte
	}
	return asn1.Marshal(digestInfo{
		DigestAlgorithm: algorithmIdentifier{Algorithm: oid, Parameters: asn1.RawValue{Tag: asn1.TagNull}},
		Digest:          digest,
	})
}
