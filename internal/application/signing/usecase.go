package signing

import (
	"context"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/domain"
	"github.com/jhoicas/efinanceira-signer/internal/domain/entity"
	"github.com/jhoicas/efinanceira-signer/internal/domain/repository"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/credential"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/signer"
)

// SigningUseCase casos de uso de firma, verificación y detección de eventos e-Financeira.
//
// Cada firma abre su propia sesión: se adquiere la credencial, se firma y se libera
// (Close) aunque la firma falle. Si hay base configurada, los recibos se guardan en una
// sola transacción por sesión.
type SigningUseCase struct {
	source   credential.Source
	signer   DocumentSigner
	verifier DocumentVerifier
	tx       ReceiptTxRunner                       // nil: sin registro de recibos
	receipts repository.SignatureReceiptRepository // lecturas; nil si no hay base
	strict   bool
	log      zerolog.Logger
	now      func() time.Time
}

// NewSigningUseCase construye el caso de uso. tx y receipts pueden ser nil (sin base de datos).
func NewSigningUseCase(
	source credential.Source,
	signer DocumentSigner,
	verifier DocumentVerifier,
	tx ReceiptTxRunner,
	receipts repository.SignatureReceiptRepository,
	strict bool,
	log zerolog.Logger,
) *SigningUseCase {
	return &SigningUseCase{
		source:   source,
		signer:   signer,
		verifier: verifier,
		tx:       tx,
		receipts: receipts,
		strict:   strict,
		log:      log,
		now:      time.Now,
	}
}

// SignDocument firma un evento individual. Target vacío detecta el evento.
func (uc *SigningUseCase) SignDocument(ctx context.Context, in dto.SignDocumentRequest) (*dto.SignResponse, error) {
	if strings.TrimSpace(in.XML) == "" {
		return nil, fmt.Errorf("%w: xml requerido", domain.ErrInvalidInput)
	}
	return uc.sign(ctx, func(cred *credential.Credential) ([]byte, []signer.SignatureInfo, error) {
		out, info, err := uc.signer.Sign([]byte(in.XML), in.Target, cred)
		if err != nil {
			return nil, nil, err
		}
		return out, []signer.SignatureInfo{info}, nil
	})
}

// SignLot firma todos los eventos de un lote; si uno falla no se firma ninguno.
func (uc *SigningUseCase) SignLot(ctx context.Context, in dto.SignLotRequest) (*dto.SignResponse, error) {
	if strings.TrimSpace(in.XML) == "" {
		return nil, fmt.Errorf("%w: xml requerido", domain.ErrInvalidInput)
	}
	return uc.sign(ctx, func(cred *credential.Credential) ([]byte, []signer.SignatureInfo, error) {
		return uc.signer.SignLotBytes([]byte(in.XML), cred)
	})
}

func (uc *SigningUseCase) sign(ctx context.Context, fn func(*credential.Credential) ([]byte, []signer.SignatureInfo, error)) (*dto.SignResponse, error) {
	sessionID := uuid.New().String()
	log := uc.log.With().Str("session_id", sessionID).Logger()

	cred, err := uc.source.Acquire()
	if err != nil {
		log.Error().Err(err).Msg("no se pudo obtener la credencial de firma")
		return nil, err
	}
	defer func() {
		if cerr := cred.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("error liberando la credencial")
		}
	}()

	out, infos, err := fn(cred)
	if err != nil {
		log.Error().Err(err).Str("thumbprint", cred.Thumbprint()).Msg("firma fallida")
		return nil, err
	}

	signedAt := uc.now().UTC()
	receipts := make([]*entity.SignatureReceipt, 0, len(infos))
	for _, info := range infos {
		receipts = append(receipts, toReceipt(sessionID, cred, info, signedAt))
		log.Info().
			Int("event_index", info.EventIndex).
			Str("element", info.Element).
			Str("reference_id", info.ReferenceID).
			Str("algorithm", info.Algorithm.Name).
			Msg("evento firmado")
	}

	if uc.tx != nil {
		err := uc.tx.RunReceipts(ctx, func(repo repository.SignatureReceiptRepository) error {
			for _, r := range receipts {
				if err := repo.Create(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("no se pudieron guardar los recibos")
			return nil, fmt.Errorf("efin: guardar recibos: %w", err)
		}
	}

	resp := &dto.SignResponse{
		SessionID:   sessionID,
		XML:         string(out),
		Certificate: describe(cred),
		Signatures:  make([]dto.SignatureResponse, 0, len(receipts)),
		SignedAt:    signedAt,
	}
	for _, r := range receipts {
		resp.Signatures = append(resp.Signatures, dto.SignatureResponse{
			ReceiptID:   r.ID,
			EventIndex:  r.EventIndex,
			Element:     r.Element,
			ReferenceID: r.ReferenceID,
			Algorithm:   r.Algorithm,
			DigestValue: r.DigestValue,
		})
	}
	return resp, nil
}

// Verify valida todas las firmas del documento. XML inválido es ErrInvalidInput; firmas
// inválidas no son error (Valid=false con el detalle).
func (uc *SigningUseCase) Verify(_ context.Context, in dto.VerifyRequest) (*dto.VerifyResponse, error) {
	results, err := uc.verifier.VerifyBytesDetailed([]byte(in.XML))
	if err != nil {
		return nil, err
	}
	resp := &dto.VerifyResponse{Valid: len(results) > 0, Signatures: make([]dto.SignatureCheck, 0, len(results))}
	for _, r := range results {
		check := dto.SignatureCheck{
			Element:         r.Element,
			ReferenceURI:    r.ReferenceURI,
			SignatureMethod: r.SignatureMethod,
			Subject:         r.Subject,
			Valid:           r.Valid,
		}
		if r.Err != nil {
			check.Error = r.Err.Error()
		}
		if !r.Valid {
			resp.Valid = false
		}
		resp.Signatures = append(resp.Signatures, check)
	}
	uc.log.Debug().Bool("valid", resp.Valid).Int("signatures", len(results)).Msg("verificación")
	return resp, nil
}

// Detect devuelve el tipo de evento del documento (modo estricto según configuración).
func (uc *SigningUseCase) Detect(_ context.Context, in dto.DetectRequest) (*dto.DetectResponse, error) {
	doc, err := signer.ParseDocument([]byte(in.XML))
	if err != nil {
		return nil, err
	}
	detect := signer.Detect
	if uc.strict {
		detect = signer.DetectStrict
	}
	tag, err := detect(doc)
	if err != nil {
		return nil, err
	}
	return &dto.DetectResponse{EventTag: tag.ElementName()}, nil
}

// InspectCredential adquiere la credencial configurada y devuelve sus datos públicos.
func (uc *SigningUseCase) InspectCredential(_ context.Context) (*dto.CertificateResponse, error) {
	cred, err := uc.source.Acquire()
	if err != nil {
		return nil, err
	}
	defer cred.Close()
	resp := describe(cred)
	return &resp, nil
}

// ListReceipts devuelve los recibos de una sesión de firma.
func (uc *SigningUseCase) ListReceipts(ctx context.Context, sessionID string) ([]dto.ReceiptResponse, error) {
	if uc.receipts == nil {
		return nil, domain.ErrStoreDisabled
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: session_id inválido", domain.ErrInvalidInput)
	}
	list, err := uc.receipts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return toReceiptResponses(list), nil
}

// ListReceiptsByCertificate lista recibos de un certificado por huella (acepta separadores).
func (uc *SigningUseCase) ListReceiptsByCertificate(ctx context.Context, thumbprint string, page dto.PageRequest) ([]dto.ReceiptResponse, error) {
	if uc.receipts == nil {
		return nil, domain.ErrStoreDisabled
	}
	page.DefaultPage()
	list, err := uc.receipts.ListByThumbprint(ctx, credential.NormalizeThumbprint(thumbprint), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return toReceiptResponses(list), nil
}

func toReceipt(sessionID string, cred *credential.Credential, info signer.SignatureInfo, signedAt time.Time) *entity.SignatureReceipt {
	subject := ""
	if cert := cred.Certificate(); cert != nil {
		subject = cert.Subject.String()
	}
	return &entity.SignatureReceipt{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		EventIndex:     info.EventIndex,
		Element:        info.Element,
		ReferenceID:    info.ReferenceID,
		Algorithm:      info.Algorithm.Name,
		DigestValue:    info.DigestValue,
		CertThumbprint: cred.Thumbprint(),
		CertSubject:    subject,
		SignedAt:       signedAt,
	}
}

func toReceiptResponses(list []*entity.SignatureReceipt) []dto.ReceiptResponse {
	out := make([]dto.ReceiptResponse, 0, len(list))
	for _, r := range list {
		out = append(out, dto.ReceiptResponse{
			ID:             r.ID,
			SessionID:      r.SessionID,
			EventIndex:     r.EventIndex,
			Element:        r.Element,
			ReferenceID:    r.ReferenceID,
			Algorithm:      r.Algorithm,
			DigestValue:    r.DigestValue,
			CertThumbprint: r.CertThumbprint,
			CertSubject:    r.CertSubject,
			SignedAt:       r.SignedAt,
		})
	}
	return out
}

func describe(cred *credential.Credential) dto.CertificateResponse {
	cert := cred.Certificate()
	if cert == nil {
		return dto.CertificateResponse{Source: cred.Source()}
	}
	return dto.CertificateResponse{
		Subject:    cert.Subject.String(),
		Issuer:     cert.Issuer.String(),
		Serial:     cert.SerialNumber.String(),
		Thumbprint: cred.Thumbprint(),
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
		KeyUsage:   keyUsageNames(cert.KeyUsage),
		Source:     cred.Source(),
	}
}

var keyUsageLabels = []struct {
	bit  x509.KeyUsage
	name string
}{
	{x509.KeyUsageDigitalSignature, "digitalSignature"},
	{x509.KeyUsageContentCommitment, "nonRepudiation"},
	{x509.KeyUsageKeyEncipherment, "keyEncipherment"},
	{x509.KeyUsageDataEncipherment, "dataEncipherment"},
	{x509.KeyUsageKeyAgreement, "keyAgreement"},
	{x509.KeyUsageCertSign, "keyCertSign"},
	{x509.KeyUsageCRLSign, "cRLSign"},
}

func keyUsageNames(ku x509.KeyUsage) []string {
	names := []string{}
	for _, l := range keyUsageLabels {
		if ku&l.bit != 0 {
			names = append(names, l.name)
		}
	}
	return names
}
