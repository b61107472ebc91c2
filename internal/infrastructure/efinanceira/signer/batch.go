package signer

import (
	"github.com/beevik/etree"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// stagedSignature es una firma ya calculada que aún no se insertó en el lote.
type stagedSignature struct {
	inner *etree.Element
	path  []int
	sig   *etree.Element
}

// SignLot firma cada <evento> del lote. Todo o nada: primero se firman todos los eventos sobre
// copias independientes y solo si ninguno falla se insertan las firmas en el documento.
// Ante la primera falla el lote queda intacto y el error lleva el número de evento (1-based).
func (s *Service) SignLot(lot *etree.Document, kp KeyPair) ([]SignatureInfo, error) {
	wrappers := lotEvents(lot.Root())
	if len(wrappers) == 0 {
		return nil, &efinanceira.TargetError{Kind: efinanceira.ErrNoEventsFound, Element: rootName(lot.Root())}
	}

	staged := make([]stagedSignature, 0, len(wrappers))
	infos := make([]SignatureInfo, 0, len(wrappers))
	for i, w := range wrappers {
		index := i + 1
		children := w.ChildElements()
		if len(children) == 0 {
			return nil, &efinanceira.TargetError{Kind: efinanceira.ErrElementNotFound, Element: EventWrapperElement, EventIndex: index}
		}
		inner := children[0]

		// Documento independiente con los namespaces heredados del lote.
		standalone := etree.NewDocument()
		standalone.SetRoot(scopedCopy(inner))

		tag, err := s.detect(standalone.Root())
		if err != nil {
			return nil, efinanceira.WithEventIndex(err, index)
		}
		target, sig, info, err := s.negotiate(standalone.Root(), tag.ElementName(), kp)
		if err != nil {
			return nil, efinanceira.WithEventIndex(err, index)
		}
		path, ok := childPath(standalone.Root(), target)
		if !ok {
			return nil, efinanceira.WithEventIndex(&efinanceira.TargetError{Kind: efinanceira.ErrElementNotFound, Element: tag.ElementName()}, index)
		}

		info.EventIndex = index
		staged = append(staged, stagedSignature{inner: inner, path: path, sig: sig})
		infos = append(infos, info)
	}

	for _, st := range staged {
		el := followPath(st.inner, st.path)
		removeSignatures(el)
		el.AddChild(st.sig)
	}
	return infos, nil
}

// lotEvents devuelve los <evento> hijos directos de <loteEventos>. Un elemento "evento" dentro
// del contenido de un evento no es otro evento del lote.
func lotEvents(root *etree.Element) []*etree.Element {
	lote := findFirst(root, LotElement)
	if lote == nil {
		return nil
	}
	var events []*etree.Element
	for _, child := range lote.ChildElements() {
		if child.Tag == EventWrapperElement {
			events = append(events, child)
		}
	}
	return events
}

// SignLotBytes parsea, firma el lote y serializa.
func (s *Service) SignLotBytes(xmlBytes []byte, kp KeyPair) ([]byte, []SignatureInfo, error) {
	doc, err := ParseDocument(xmlBytes)
	if err != nil {
		return nil, nil, err
	}
	infos, err := s.SignLot(doc, kp)
	if err != nil {
		return nil, nil, err
	}
	out, err := SerializeDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	return out, infos, nil
}
