package efinanceira

import "crypto"

// URIs de algoritmos XMLDSig aceptados por la Receita Federal.
const (
	SignatureMethodRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	SignatureMethodRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	DigestMethodSHA256       = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestMethodSHA1         = "http://www.w3.org/2000/09/xmldsig#sha1"
)

// AlgorithmPair agrupa método de firma y de digest que se usan juntos.
type AlgorithmPair struct {
	Name               string
	SignatureMethodURI string
	DigestMethodURI    string
	Hash               crypto.Hash
}

var (
	PairSHA256 = AlgorithmPair{
		Name:               "RSA-SHA256",
		SignatureMethodURI: SignatureMethodRSASHA256,
		DigestMethodURI:    DigestMethodSHA256,
		Hash:               crypto.SHA256,
	}
	PairSHA1 = AlgorithmPair{
		Name:               "RSA-SHA1",
		SignatureMethodURI: SignatureMethodRSASHA1,
		DigestMethodURI:    DigestMethodSHA1,
		Hash:               crypto.SHA1,
	}
)

// NegotiationOrder: SHA-256 primero; SHA-1 solo como respaldo.
var NegotiationOrder = []AlgorithmPair{PairSHA256, PairSHA1}

// PairForSignatureMethod devuelve el par permitido para un SignatureMethod dado.
func PairForSignatureMethod(uri string) (AlgorithmPair, bool) {
	for _, p := range NegotiationOrder {
		if p.SignatureMethodURI == uri {
			return p, true
		}
	}
	return AlgorithmPair{}, false
}

func (p AlgorithmPair) String() string {
	return p.Name
}
