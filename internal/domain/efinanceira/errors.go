// Taxonomía de errores de firma e-Financeira: credencial, objetivo y algoritmo.

package efinanceira

import (
	"errors"
	"fmt"
)

// Errores centinela. Los errores tipados de abajo responden a errors.Is con su Kind.
var (
	ErrCredentialNotFound = errors.New("credencial no encontrada")
	ErrBadPassword        = errors.New("contraseña de la credencial incorrecta")
	ErrNoPrivateKey       = errors.New("la credencial no contiene llave privada")
	ErrUnauthorizedUsage  = errors.New("el uso de llave del certificado no permite firma digital")
	ErrNoCandidates       = errors.New("no hay certificados candidatos para firma")

	ErrElementNotFound    = errors.New("elemento a firmar no encontrado")
	ErrMissingIDAttribute = errors.New("el elemento a firmar no tiene atributo id")
	ErrUnknownEventType   = errors.New("tipo de evento desconocido")
	ErrAmbiguousEventType = errors.New("el documento contiene más de un tipo de evento")
	ErrNoEventsFound      = errors.New("el lote no contiene eventos")

	ErrSHA256Unavailable    = errors.New("RSA-SHA256 no disponible en el entorno")
	ErrSignatureComputation = errors.New("falló el cálculo de la firma")
)

// CredentialError describe una falla al obtener la credencial de firma.
type CredentialError struct {
	Kind   error
	Source string
	Cause  error
}

func (e *CredentialError) Error() string {
	msg := "efin: credencial"
	if e.Source != "" {
		msg += " " + e.Source
	}
	msg += ": " + e.Kind.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap expone tanto el Kind como la causa original para errors.Is / errors.As.
func (e *CredentialError) Unwrap() []error {
	return compact(e.Kind, e.Cause)
}

// TargetError describe una falla localizando el elemento a firmar.
// EventIndex es 1-based dentro de un lote; 0 indica un documento individual.
type TargetError struct {
	Kind       error
	Element    string
	EventIndex int
	Cause      error
}

func (e *TargetError) Error() string {
	msg := "efin: "
	if e.EventIndex > 0 {
		msg += fmt.Sprintf("evento #%d: ", e.EventIndex)
	}
	msg += e.Kind.Error()
	if e.Element != "" {
		msg += fmt.Sprintf(" (<%s>)", e.Element)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TargetError) Unwrap() []error {
	return compact(e.Kind, e.Cause)
}

// AlgorithmError describe una falla del cálculo criptográfico con un par de algoritmos.
type AlgorithmError struct {
	Kind      error
	Algorithm string
	Cause     error
}

func (e *AlgorithmError) Error() string {
	msg := "efin: " + e.Kind.Error()
	if e.Algorithm != "" {
		msg += " [" + e.Algorithm + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AlgorithmError) Unwrap() []error {
	return compact(e.Kind, e.Cause)
}

// WithEventIndex devuelve err marcado con la posición del evento en el lote.
// Los TargetError conservan su Kind; el resto se envuelve como causa.
func WithEventIndex(err error, index int) error {
	var te *TargetError
	if errors.As(err, &te) && te.EventIndex == 0 {
		cp := *te
		cp.EventIndex = index
		return &cp
	}
	return fmt.Errorf("efin: evento #%d: %w", index, err)
}

func compact(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
