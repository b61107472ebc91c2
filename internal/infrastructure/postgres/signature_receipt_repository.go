package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/efinanceira-signer/internal/domain"
	"github.com/jhoicas/efinanceira-signer/internal/domain/entity"
	"github.com/jhoicas/efinanceira-signer/internal/domain/repository"
)

var _ repository.SignatureReceiptRepository = (*SignatureReceiptRepo)(nil)

// SignatureReceiptRepo implementación de SignatureReceiptRepository (usable con pool o tx).
type SignatureReceiptRepo struct {
	q Querier
}

// NewSignatureReceiptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSignatureReceiptRepository(q Querier) *SignatureReceiptRepo {
	return &SignatureReceiptRepo{q: q}
}

const receiptColumns = `id, session_id, event_index, element, reference_id, algorithm, digest_value,
		cert_thumbprint, cert_subject, signed_at`

// Create persiste un recibo de firma.
func (r *SignatureReceiptRepo) Create(ctx context.Context, rc *entity.SignatureReceipt) error {
	query := `
		INSERT INTO signature_receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		rc.ID, rc.SessionID, rc.EventIndex, rc.Element, rc.ReferenceID, rc.Algorithm, rc.DigestValue,
		rc.CertThumbprint, rc.CertSubject, rc.SignedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert signature_receipt: %w", err)
	}
	return nil
}

// ListBySession devuelve los recibos de una sesión ordenados por evento.
func (r *SignatureReceiptRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.SignatureReceipt, error) {
	query := `
		SELECT ` + receiptColumns + `
		FROM signature_receipts WHERE session_id = $1
		ORDER BY event_index`
	rows, err := r.q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list signature_receipts: %w", err)
	}
	return scanReceipts(rows)
}

// ListByThumbprint lista recibos de un certificado, más recientes primero.
func (r *SignatureReceiptRepo) ListByThumbprint(ctx context.Context, thumbprint string, limit, offset int) ([]*entity.SignatureReceipt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + receiptColumns + `
		FROM signature_receipts WHERE cert_thumbprint = $1
		ORDER BY signed_at DESC, event_index
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, thumbprint, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list signature_receipts by thumbprint: %w", err)
	}
	return scanReceipts(rows)
}

func scanReceipts(rows pgx.Rows) ([]*entity.SignatureReceipt, error) {
	defer rows.Close()
	var list []*entity.SignatureReceipt
	for rows.Next() {
		var rc entity.SignatureReceipt
		if err := rows.Scan(
			&rc.ID, &rc.SessionID, &rc.EventIndex, &rc.Element, &rc.ReferenceID, &rc.Algorithm, &rc.DigestValue,
			&rc.CertThumbprint, &rc.CertSubject, &rc.SignedAt,
		); err != nil {
			return nil, fmt.Errorf("scan signature_receipt: %w", err)
		}
		list = append(list, &rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signature_receipts: %w", err)
	}
	return list, nil
}
