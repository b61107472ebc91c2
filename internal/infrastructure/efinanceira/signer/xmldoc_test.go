package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/efinanceira-signer/internal/domain"
)

func TestParseDocument_Malformado(t *testing.T) {
	_, err := ParseDocument([]byte("<eFinanceira><evtMovPP>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseDocument_SinRaiz(t *testing.T) {
	_, err := ParseDocument([]byte(`<?xml version="1.0"?>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScopedCopy_HeredaNamespaces(t *testing.T) {
	doc := mustParse(t, cadDeclaranteXML)
	el := findFirst(doc.Root(), "evtCadDeclarante")
	require.NotNil(t, el)

	cp := scopedCopy(el)
	assert.NotNil(t, cp.SelectAttr("xmlns"), "el xmlns por defecto del ancestro debe quedar en la copia")
	assert.Nil(t, el.SelectAttr("xmlns"), "el original no se modifica")
}

func TestSerializeDocument_ReferenciasDeCaracter(t *testing.T) {
	doc := mustParse(t, `<root a="x&#xA;y&#x9;z&#xD;"><x>t&#xD;</x></root>`)

	out := string(mustSerialize(t, doc))
	assert.Contains(t, out, `<x>t&#xD;</x>`)
	assert.Contains(t, out, `a="x&#xA;y&#x9;z&#xD;"`)

	again := reparse(t, doc)
	assert.Equal(t, "t\r", again.FindElement("//x").Text())
	assert.Equal(t, "x\ny\tz\r", again.Root().SelectAttrValue("a", ""))
}

func TestSign_RetornoDeCarroSobreviveAlReleer(t *testing.T) {
	cases := map[string]string{
		"texto":    `<root><evtMovOpFin id="X1"><x>t&#xD;</x></evtMovOpFin></root>`,
		"atributo": `<root><evtMovOpFin id="X1"><x obs="a&#xD;&#xA;b">t</x></evtMovOpFin></root>`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			out, _, err := NewService().Sign([]byte(in), "", newTestCredential(t))
			require.NoError(t, err)

			results, err := Verifier{}.VerifyBytesDetailed(out)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.True(t, results[0].Valid, "%v", results[0].Err)
		})
	}
}
