package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
	"github.com/jhoicas/efinanceira-signer/internal/domain/repository"
)

var _ signing.ReceiptTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunReceipts inicia una transacción, ejecuta fn con el repo de recibos atado a la tx y hace
// Commit o Rollback. Los recibos de un lote se guardan todos o ninguno.
func (r *TxRunner) RunReceipts(ctx context.Context, fn func(receipts repository.SignatureReceiptRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewSignatureReceiptRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
