package signing

import (
	"context"

	"github.com/jhoicas/efinanceira-signer/internal/domain/repository"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/signer"
)

// DocumentSigner firma eventos individuales y lotes (implementado por *signer.Service).
type DocumentSigner interface {
	Sign(xmlBytes []byte, target string, kp signer.KeyPair) ([]byte, signer.SignatureInfo, error)
	SignLotBytes(xmlBytes []byte, kp signer.KeyPair) ([]byte, []signer.SignatureInfo, error)
}

// DocumentVerifier valida las firmas embebidas (implementado por signer.Verifier).
type DocumentVerifier interface {
	VerifyBytesDetailed(xmlBytes []byte) ([]signer.VerificationResult, error)
}

// ReceiptTxRunner ejecuta fn dentro de una transacción con el repo de recibos.
// Los recibos de un lote se guardan todos o ninguno.
type ReceiptTxRunner interface {
	RunReceipts(ctx context.Context, fn func(receipts repository.SignatureReceiptRepository) error) error
}
