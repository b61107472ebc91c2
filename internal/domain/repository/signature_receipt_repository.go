package repository

import (
	"context"

	"github.com/jhoicas/efinanceira-signer/internal/domain/entity"
)

// SignatureReceiptRepository define el puerto de persistencia para los recibos de firma.
type SignatureReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.SignatureReceipt) error
	ListBySession(ctx context.Context, sessionID string) ([]*entity.SignatureReceipt, error)
	ListByThumbprint(ctx context.Context, thumbprint string, limit, offset int) ([]*entity.SignatureReceipt, error)
}
