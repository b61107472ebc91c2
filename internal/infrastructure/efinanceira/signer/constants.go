// Constantes XMLDSig para e-Financeira (Receita Federal): firma enveloped, C14N 1.0 inclusivo.

package signer

const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// IDAttribute es el atributo que referencia la firma (Reference URI="#<id>").
const IDAttribute = "id"

// LotElement contiene los <evento> del lote.
const LotElement = "loteEventos"

// EventWrapperElement envuelve cada evento dentro de loteEventos.
const EventWrapperElement = "evento"

const signatureTag = "Signature"
