package entity

import "time"

// SignatureReceipt registra una firma producida (auditoría). Un lote genera un recibo por evento,
// todos con el mismo SessionID.
type SignatureReceipt struct {
	ID             string
	SessionID      string
	EventIndex     int    // 1-based dentro del lote; 0 para un documento individual
	Element        string // evtCadDeclarante, evtMovOpFin, ...
	ReferenceID    string // valor del atributo id firmado
	Algorithm      string // RSA-SHA256 o RSA-SHA1
	DigestValue    string
	CertThumbprint string
	CertSubject    string
	SignedAt       time.Time
}
