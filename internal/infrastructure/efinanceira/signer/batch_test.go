package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

func TestSignLot_FirmaCadaEvento(t *testing.T) {
	cred := newTestCredential(t)
	lot := mustParse(t, lotXML(
		movOpFinEvent("ID1", "Cliente Um"),
		movOpFinEvent("ID2", "Cliente Dois"),
		movOpFinEvent("ID3", "Cliente Três"),
	))

	infos, err := NewService().SignLot(lot, cred)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, i+1, info.EventIndex)
		assert.Equal(t, "evtMovOpFin", info.Element)
	}
	assert.Equal(t, "ID2", infos[1].ReferenceID)

	sigs := findAll(lot.Root(), signatureTag)
	require.Len(t, sigs, 3)
	for _, sig := range sigs {
		assert.Equal(t, "evtMovOpFin", sig.Parent().Tag)
	}

	results := Verifier{}.VerifyDetailed(reparse(t, lot))
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Valid, "firma de %s: %v", r.ReferenceURI, r.Err)
	}
}

func TestSignLot_TodoONada(t *testing.T) {
	cred := newTestCredential(t)
	lot := mustParse(t, lotXML(
		movOpFinEvent("ID1", "Cliente Um"),
		movOpFinEvent("", "Cliente Dois"),
		movOpFinEvent("ID3", "Cliente Três"),
	))
	before := mustSerialize(t, lot)

	infos, err := NewService().SignLot(lot, cred)
	require.Error(t, err)
	assert.Nil(t, infos)
	assert.ErrorIs(t, err, efinanceira.ErrMissingIDAttribute)

	var te *efinanceira.TargetError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.EventIndex)
	assert.Contains(t, err.Error(), "evento #2")

	assert.Empty(t, findAll(lot.Root(), signatureTag))
	assert.Equal(t, before, mustSerialize(t, lot))
}

func TestSignLot_SinEventos(t *testing.T) {
	lot := mustParse(t, `<eFinanceira><loteEventos/></eFinanceira>`)

	_, err := NewService().SignLot(lot, newTestCredential(t))
	assert.ErrorIs(t, err, efinanceira.ErrNoEventsFound)
}

func TestSignLot_EventoVacio(t *testing.T) {
	lot := mustParse(t, lotXML(movOpFinEvent("ID1", "Cliente Um"), ""))

	_, err := NewService().SignLot(lot, newTestCredential(t))
	var te *efinanceira.TargetError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, efinanceira.ErrElementNotFound)
	assert.Equal(t, 2, te.EventIndex)
}

func TestSignLot_EventoDesconocido(t *testing.T) {
	lot := mustParse(t, lotXML(`<eFinanceira><evtOtro id="X"/></eFinanceira>`))

	_, err := NewService().SignLot(lot, newTestCredential(t))
	assert.ErrorIs(t, err, efinanceira.ErrUnknownEventType)
	assert.Contains(t, err.Error(), "evento #1")
}

func TestSignLotBytes(t *testing.T) {
	out, infos, err := NewService().SignLotBytes([]byte(lotXML(movOpFinEvent("ID9", "Cliente"))), newTestCredential(t))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, Verifier{}.VerifyBytes(out))
}

func TestSignLot_EventoAnidadoNoEsOtroEvento(t *testing.T) {
	inner := `<eFinanceira xmlns="http://www.eFinanceira.gov.br/schemas/evtMovOpFin/v1_2_1"><evtMovOpFin id="ID1">` +
		`<ideEvento><tpAmb>2</tpAmb></ideEvento><evento><nome>texto libre</nome></evento></evtMovOpFin></eFinanceira>`
	lot := mustParse(t, lotXML(inner))

	infos, err := NewService().SignLot(lot, newTestCredential(t))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "ID1", infos[0].ReferenceID)
	assert.True(t, Verify(reparse(t, lot)))
}

func TestSignLot_SinLoteEventos(t *testing.T) {
	lot := mustParse(t, `<eFinanceira><evento><eFinanceira><evtMovPP id="A1"/></eFinanceira></evento></eFinanceira>`)

	_, err := NewService().SignLot(lot, newTestCredential(t))
	assert.ErrorIs(t, err, efinanceira.ErrNoEventsFound)
}
