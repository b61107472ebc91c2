package credential

import (
	"fmt"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
	"github.com/jhoicas/efinanceira-signer/pkg/config"
)

// Source entrega una credencial por sesión de firma. Quien llama a Acquire debe cerrar la credencial.
type Source interface {
	Acquire() (*Credential, error)
}

// FileSource lee un contenedor PKCS#12.
type FileSource struct {
	Path     string
	Password string
}

func (s FileSource) Acquire() (*Credential, error) { return FromFile(s.Path, s.Password) }

// PEMSource lee certificado y llave PEM.
type PEMSource struct {
	CertPath string
	KeyPath  string
}

func (s PEMSource) Acquire() (*Credential, error) { return FromPEM(s.CertPath, s.KeyPath) }

// StoreSource busca por huella en un token PKCS#11.
type StoreSource struct {
	Store      *Store
	Thumbprint string
}

func (s StoreSource) Acquire() (*Credential, error) { return s.Store.FromStore(s.Thumbprint) }

// StoreCandidatesSource elige el primer candidato apto del token.
type StoreCandidatesSource struct {
	Store *Store
}

func (s StoreCandidatesSource) Acquire() (*Credential, error) {
	return s.Store.FromCandidateSelection()
}

// CandidateListSource elige entre credenciales inyectadas, sin almacén del SO.
// Devuelve una vista de la primera con llave privada y uso de llave apto: cerrarla no cierra
// la credencial inyectada, que sigue siendo del llamador.
type CandidateListSource struct {
	Candidates []*Credential
}

func (s CandidateListSource) Acquire() (*Credential, error) {
	for _, c := range s.Candidates {
		if c != nil && c.HasPrivateKey() && c.PermitsDigitalSignature() {
			return c.borrowed(), nil
		}
	}
	return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrNoCandidates, Source: "lista inyectada"}
}

// NewSource arma la fuente descrita por la configuración.
func NewSource(cfg config.SignerConfig) (Source, error) {
	switch cfg.CertSource {
	case config.CertSourceFile, "":
		return FileSource{Path: cfg.CertPath, Password: cfg.CertPassword}, nil
	case config.CertSourcePEM:
		return PEMSource{CertPath: cfg.CertPath, KeyPath: cfg.CertKeyPath}, nil
	case config.CertSourceStore:
		return StoreSource{Store: NewStore(cfg.StoreModule, cfg.StoreToken, cfg.StorePIN), Thumbprint: cfg.Thumbprint}, nil
	case config.CertSourceCandidates:
		return StoreCandidatesSource{Store: NewStore(cfg.StoreModule, cfg.StoreToken, cfg.StorePIN)}, nil
	default:
		return nil, fmt.Errorf("efin: fuente de credencial desconocida %q", cfg.CertSource)
	}
}
