package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
	"github.com/jhoicas/efinanceira-signer/internal/infrastructure/efinanceira/credential"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func newTestCredential(t *testing.T) *credential.Credential {
	t.Helper()
	return newTestCredentialValid(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
}

func newTestCredentialValid(t *testing.T, notBefore, notAfter time.Time) *credential.Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "DECLARANTE TESTE:12345678000199", Organization: []string{"ICP-Brasil"}},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return credential.New(key, []*x509.Certificate{cert}, "memoria", nil)
}

const cadDeclaranteXML = `<?xml version="1.0" encoding="UTF-8"?>
<eFinanceira xmlns="http://www.eFinanceira.gov.br/schemas/evtCadDeclarante/v1_2_0" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <evtCadDeclarante id="ID1">
    <ideEvento><indRetificacao>1</indRetificacao><tpAmb>2</tpAmb><aplicEmi>1</aplicEmi><verAplic>1.0</verAplic></ideEvento>
    <ideDeclarante><cnpjDeclarante>12345678000199</cnpjDeclarante></ideDeclarante>
    <infoCadastro><nome>Declarante Teste</nome><endereco>Rua A &amp; B</endereco></infoCadastro>
  </evtCadDeclarante>
</eFinanceira>`

func lotXML(events ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<eFinanceira xmlns="http://www.eFinanceira.gov.br/schemas/envioLoteEventos/v1_2_0"><loteEventos>`)
	for i, e := range events {
		sb.WriteString(`<evento id="EV` + string(rune('1'+i)) + `">` + e + `</evento>`)
	}
	sb.WriteString(`</loteEventos></eFinanceira>`)
	return sb.String()
}

func movOpFinEvent(id, name string) string {
	attr := ""
	if id != "" {
		attr = ` id="` + id + `"`
	}
	return `<eFinanceira xmlns="http://www.eFinanceira.gov.br/schemas/evtMovOpFin/v1_2_1"><evtMovOpFin` + attr +
		`><ideEvento><tpAmb>2</tpAmb></ideEvento><mesCaixa><nome>` + name + `</nome></mesCaixa></evtMovOpFin></eFinanceira>`
}

func mustParse(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc, err := ParseDocument([]byte(s))
	require.NoError(t, err)
	return doc
}

func mustSerialize(t *testing.T, doc *etree.Document) []byte {
	t.Helper()
	out, err := SerializeDocument(doc)
	require.NoError(t, err)
	return out
}

// reparse simula el envío: serializar y volver a leer antes de verificar.
func reparse(t *testing.T, doc *etree.Document) *etree.Document {
	t.Helper()
	return mustParse(t, string(mustSerialize(t, doc)))
}

type staticKeyPair struct {
	signer crypto.Signer
	chain  [][]byte
}

func (k staticKeyPair) Signer() crypto.Signer { return k.signer }
func (k staticKeyPair) Chain() [][]byte       { return k.chain }

type failingSigner struct {
	crypto.Signer
	calls int
}

func (f *failingSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	f.calls++
	return nil, errors.New("token removido")
}

// ──────────────────────────────────────────────────────────────────────────────
// CanonicalSigner / Service
// ──────────────────────────────────────────────────────────────────────────────

func TestSignDocument_EstructuraDeLaFirma(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, cadDeclaranteXML)

	info, err := NewService().SignDocument(doc, "evtCadDeclarante", cred)
	require.NoError(t, err)
	assert.Equal(t, "ID1", info.ReferenceID)
	assert.Equal(t, efinanceira.PairSHA256, info.Algorithm)
	assert.NotEmpty(t, info.DigestValue)

	target := findFirst(doc.Root(), "evtCadDeclarante")
	children := target.ChildElements()
	sig := children[len(children)-1]
	require.True(t, isSignature(sig), "la firma debe ser el último hijo del elemento firmado")
	assert.Equal(t, "", sig.Space, "la firma usa el namespace por defecto")
	assert.Equal(t, NamespaceDS, sig.SelectAttrValue("xmlns", ""))

	assert.Equal(t, AlgC14N, attrOf(sig, "./SignedInfo/CanonicalizationMethod", "Algorithm"))
	assert.Equal(t, efinanceira.SignatureMethodRSASHA256, attrOf(sig, "./SignedInfo/SignatureMethod", "Algorithm"))
	assert.Equal(t, "#ID1", attrOf(sig, "./SignedInfo/Reference", "URI"))
	assert.Equal(t, efinanceira.DigestMethodSHA256, attrOf(sig, "./SignedInfo/Reference/DigestMethod", "Algorithm"))

	transforms := sig.FindElements("./SignedInfo/Reference/Transforms/Transform")
	require.Len(t, transforms, 2)
	assert.Equal(t, TransformEnveloped, transforms[0].SelectAttrValue("Algorithm", ""))
	assert.Equal(t, AlgC14N, transforms[1].SelectAttrValue("Algorithm", ""))

	certB64 := elementText(sig, "./KeyInfo/X509Data/X509Certificate")
	assert.Equal(t, base64.StdEncoding.EncodeToString(cred.Certificate().Raw), certB64)
	assert.NotContains(t, string(mustSerialize(t, doc)), "PRIVATE KEY")
}

func TestSignDocument_ReferenciaSigueAlID(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, strings.Replace(cadDeclaranteXML, `id="ID1"`, `id="ID2"`, 1))

	_, err := NewService().SignDocument(doc, "evtCadDeclarante", cred)
	require.NoError(t, err)

	sig := findFirst(doc.Root(), signatureTag)
	assert.Equal(t, "#ID2", attrOf(sig, "./SignedInfo/Reference", "URI"))
}

func TestSignDocument_FirmaYVerifica(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, cadDeclaranteXML)

	_, err := NewService().SignDocument(doc, "evtCadDeclarante", cred)
	require.NoError(t, err)

	assert.True(t, Verify(doc), "verificación en memoria")
	assert.True(t, Verify(reparse(t, doc)), "verificación tras serializar con namespaces heredados")
}

func TestSignDocument_AlterarContenidoInvalida(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, cadDeclaranteXML)
	_, err := NewService().SignDocument(doc, "evtCadDeclarante", cred)
	require.NoError(t, err)

	signed := mustSerialize(t, doc)
	tampered := bytes.Replace(signed, []byte("Declarante Teste"), []byte("Declarante Tesse"), 1)
	require.NotEqual(t, signed, tampered)

	assert.False(t, Verifier{}.VerifyBytes(tampered))
}

func TestSignDocument_AutodeteccionDeEvento(t *testing.T) {
	cred := newTestCredential(t)
	out, info, err := NewService().Sign([]byte(cadDeclaranteXML), "", cred)
	require.NoError(t, err)

	assert.Equal(t, "evtCadDeclarante", info.Element)
	assert.True(t, Verifier{}.VerifyBytes(out))
}

func TestSignDocument_ElementoInexistente(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, cadDeclaranteXML)

	_, err := NewService().SignDocument(doc, "evtMovPP", cred)
	var te *efinanceira.TargetError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, efinanceira.ErrElementNotFound)
	assert.Equal(t, "evtMovPP", te.Element)
}

func TestSignDocument_SinAtributoID(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, strings.Replace(cadDeclaranteXML, ` id="ID1"`, "", 1))

	_, err := NewService().SignDocument(doc, "evtCadDeclarante", cred)
	assert.ErrorIs(t, err, efinanceira.ErrMissingIDAttribute)
	assert.Nil(t, findFirst(doc.Root(), signatureTag), "no debe quedar firma parcial")
}

func TestSignDocument_RefirmarReemplazaFirma(t *testing.T) {
	cred := newTestCredential(t)
	doc := mustParse(t, cadDeclaranteXML)
	svc := NewService()

	_, err := svc.SignDocument(doc, "evtCadDeclarante", cred)
	require.NoError(t, err)
	_, err = svc.SignDocument(doc, "evtCadDeclarante", newTestCredential(t))
	require.NoError(t, err)

	assert.Len(t, findAll(doc.Root(), signatureTag), 1)
	assert.True(t, Verify(reparse(t, doc)))
}

func TestSignDocument_DocumentoISO88591(t *testing.T) {
	cred := newTestCredential(t)
	src := strings.Replace(cadDeclaranteXML, `encoding="UTF-8"`, `encoding="ISO-8859-1"`, 1)
	src = strings.Replace(src, "Declarante Teste", "Declarante São João", 1)
	latin1, err := charmap.ISO8859_1.NewEncoder().String(src)
	require.NoError(t, err)

	out, _, err := NewService().Sign([]byte(latin1), "evtCadDeclarante", cred)
	require.NoError(t, err)

	assert.Contains(t, string(out), `encoding="UTF-8"`)
	assert.Contains(t, string(out), "São João")
	assert.True(t, Verifier{}.VerifyBytes(out))
}

// ──────────────────────────────────────────────────────────────────────────────
// Negociación de algoritmo sobre el firmante real
// ──────────────────────────────────────────────────────────────────────────────

func TestService_SHA256NoDisponibleUsaSHA1(t *testing.T) {
	cred := newTestCredential(t)
	cs := NewCanonicalSigner()
	cs.hashAvailable = func(h crypto.Hash) bool { return h != crypto.SHA256 }
	doc := mustParse(t, cadDeclaranteXML)

	info, err := NewService(WithCanonicalSigner(cs)).SignDocument(doc, "evtCadDeclarante", cred)
	require.NoError(t, err)
	assert.Equal(t, efinanceira.PairSHA1, info.Algorithm)

	sig := findFirst(doc.Root(), signatureTag)
	assert.Equal(t, efinanceira.SignatureMethodRSASHA1, attrOf(sig, "./SignedInfo/SignatureMethod", "Algorithm"))
	assert.Equal(t, efinanceira.DigestMethodSHA1, attrOf(sig, "./SignedInfo/Reference/DigestMethod", "Algorithm"))
	assert.True(t, Verify(reparse(t, doc)))
}

func TestService_OtroErrorNoHaceRespaldo(t *testing.T) {
	cred := newTestCredential(t)
	failing := &failingSigner{Signer: cred.Signer()}
	kp := staticKeyPair{signer: failing, chain: cred.Chain()}
	doc := mustParse(t, cadDeclaranteXML)

	_, err := NewService().SignDocument(doc, "evtCadDeclarante", kp)
	require.Error(t, err)
	assert.ErrorIs(t, err, efinanceira.ErrSignatureComputation)
	assert.NotErrorIs(t, err, efinanceira.ErrSHA256Unavailable)
	assert.Equal(t, 1, failing.calls, "no debe reintentar con SHA-1")
	assert.Nil(t, findFirst(doc.Root(), signatureTag))
}

func TestService_AmbosAlgoritmosFallan(t *testing.T) {
	cred := newTestCredential(t)
	cs := NewCanonicalSigner()
	cs.hashAvailable = func(crypto.Hash) bool { return false }
	doc := mustParse(t, cadDeclaranteXML)

	_, err := NewService(WithCanonicalSigner(cs)).SignDocument(doc, "evtCadDeclarante", cred)
	require.Error(t, err)
	assert.ErrorIs(t, err, efinanceira.ErrSHA256Unavailable)
	assert.ErrorIs(t, err, efinanceira.ErrSignatureComputation)
	assert.Contains(t, err.Error(), "RSA-SHA256")
	assert.Contains(t, err.Error(), "RSA-SHA1")
}

// ──────────────────────────────────────────────────────────────────────────────
// SignatureVerifier
// ──────────────────────────────────────────────────────────────────────────────

func signedDoc(t *testing.T) *etree.Document {
	t.Helper()
	doc := mustParse(t, cadDeclaranteXML)
	_, err := NewService().SignDocument(doc, "evtCadDeclarante", newTestCredential(t))
	require.NoError(t, err)
	return reparse(t, doc)
}

func TestVerify_SinFirma(t *testing.T) {
	assert.False(t, Verify(mustParse(t, cadDeclaranteXML)))
	assert.False(t, Verify(etree.NewDocument()))
	assert.False(t, Verify(nil))
	assert.False(t, Verifier{}.VerifyBytes([]byte("<no-cerrado>")))
}

func TestVerify_DigestValueAlterado(t *testing.T) {
	doc := signedDoc(t)
	dv := doc.FindElement("//SignedInfo/Reference/DigestValue")
	require.NotNil(t, dv)
	raw, err := base64.StdEncoding.DecodeString(dv.Text())
	require.NoError(t, err)
	raw[0] ^= 0xFF
	dv.SetText(base64.StdEncoding.EncodeToString(raw))

	assert.False(t, Verify(doc))
}

func TestVerify_MetodoDSARechazado(t *testing.T) {
	doc := signedDoc(t)
	sm := doc.FindElement("//SignedInfo/SignatureMethod")
	require.NotNil(t, sm)
	sm.CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#dsa-sha1")

	results := Verifier{}.VerifyDetailed(doc)
	require.Len(t, results, 1)
	assert.False(t, results[0].Valid)
	assert.Contains(t, results[0].Err.Error(), "SignatureMethod")
	assert.False(t, Verify(doc))
}

func TestVerify_CertificadoMalformado(t *testing.T) {
	doc := signedDoc(t)
	doc.FindElement("//KeyInfo/X509Data/X509Certificate").SetText("%%%no-es-base64%%%")
	assert.False(t, Verify(doc))

	doc = signedDoc(t)
	ki := doc.FindElement("//KeyInfo")
	ki.Parent().RemoveChild(ki)
	assert.False(t, Verify(doc))
}

func TestVerify_FirmaEnRaizDelDocumento(t *testing.T) {
	doc := mustParse(t, `<Signature xmlns="http://www.w3.org/2000/09/xmldsig#"><SignedInfo/></Signature>`)
	assert.False(t, Verify(doc))
}

func TestVerify_VigenciaSoloConAt(t *testing.T) {
	doc := signedDoc(t)
	assert.True(t, Verifier{}.Verify(doc))
	assert.True(t, Verifier{At: time.Now()}.Verify(doc))
	assert.False(t, Verifier{At: time.Now().Add(72 * time.Hour)}.Verify(doc))
}

func TestVerify_CertificadoVencidoAlFirmar(t *testing.T) {
	expired := newTestCredentialValid(t, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))

	out, _, err := NewService().Sign([]byte(cadDeclaranteXML), "", expired)
	require.NoError(t, err)

	assert.True(t, Verifier{}.VerifyBytes(out), "la firma se valida contra la llave embebida sin exigir vigencia")
	assert.False(t, Verifier{At: time.Now()}.VerifyBytes(out))
}
