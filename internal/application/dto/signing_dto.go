package dto

import "time"

// SignDocumentRequest entrada para firmar un evento individual.
// Target vacío = autodetección del tipo de evento.
type SignDocumentRequest struct {
	XML    string `json:"xml" validate:"required"`
	Target string `json:"target,omitempty"`
}

// SignLotRequest entrada para firmar un lote (envioLoteEventos).
type SignLotRequest struct {
	XML string `json:"xml" validate:"required"`
}

// SignatureResponse una firma producida.
type SignatureResponse struct {
	ReceiptID   string `json:"receipt_id"`
	EventIndex  int    `json:"event_index,omitempty"`
	Element     string `json:"element"`
	ReferenceID string `json:"reference_id"`
	Algorithm   string `json:"algorithm"`
	DigestValue string `json:"digest_value"`
}

// SignResponse salida de una firma (documento o lote).
type SignResponse struct {
	SessionID   string              `json:"session_id"`
	XML         string              `json:"xml"`
	Certificate CertificateResponse `json:"certificate"`
	Signatures  []SignatureResponse `json:"signatures"`
	SignedAt    time.Time           `json:"signed_at"`
}

// CertificateResponse datos públicos de la credencial usada (nunca la llave).
type CertificateResponse struct {
	Subject    string    `json:"subject"`
	Issuer     string    `json:"issuer"`
	Serial     string    `json:"serial"`
	Thumbprint string    `json:"thumbprint"`
	NotBefore  time.Time `json:"not_before"`
	NotAfter   time.Time `json:"not_after"`
	KeyUsage   []string  `json:"key_usage"`
	Source     string    `json:"source"`
}

// VerifyRequest entrada para verificar las firmas de un documento.
type VerifyRequest struct {
	XML string `json:"xml" validate:"required"`
}

// SignatureCheck resultado de una firma dentro del documento.
type SignatureCheck struct {
	Element         string `json:"element"`
	ReferenceURI    string `json:"reference_uri"`
	SignatureMethod string `json:"signature_method"`
	Subject         string `json:"subject,omitempty"`
	Valid           bool   `json:"valid"`
	Error           string `json:"error,omitempty"`
}

// VerifyResponse Valid es true solo si hay al menos una firma y todas son válidas.
type VerifyResponse struct {
	Valid      bool             `json:"valid"`
	Signatures []SignatureCheck `json:"signatures"`
}

// DetectRequest entrada para detectar el tipo de evento.
type DetectRequest struct {
	XML string `json:"xml" validate:"required"`
}

// DetectResponse tipo de evento detectado.
type DetectResponse struct {
	EventTag string `json:"event_tag"`
}

// ReceiptResponse recibo de firma persistido.
type ReceiptResponse struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	EventIndex     int       `json:"event_index"`
	Element        string    `json:"element"`
	ReferenceID    string    `json:"reference_id"`
	Algorithm      string    `json:"algorithm"`
	DigestValue    string    `json:"digest_value"`
	CertThumbprint string    `json:"cert_thumbprint"`
	CertSubject    string    `json:"cert_subject"`
	SignedAt       time.Time `json:"signed_at"`
}
