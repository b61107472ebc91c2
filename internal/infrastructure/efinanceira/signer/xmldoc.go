// Utilidades de documento sobre etree: lectura con charset, escritura sin indentación, copias con ámbito.

package signer

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/jhoicas/efinanceira-signer/internal/domain"
)

// ParseDocument lee XML en UTF-8 o en cualquier charset IANA declarado (ISO-8859-1, windows-1252...).
func ParseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("efin: parsear XML: %w: %w", domain.ErrInvalidInput, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("efin: documento sin raíz: %w", domain.ErrInvalidInput)
	}
	return doc, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("efin: charset %q no soportado: %w", label, err)
	}
	if enc == nil {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}

// SerializeDocument escribe UTF-8 sin indentar: indentar alteraría el contenido firmado.
// CR en texto y CR/LF/TAB en atributos salen como referencias (&#xD; ...): escritos en crudo, el
// parser los normaliza al releer y el digest ya no coincide.
func SerializeDocument(doc *etree.Document) ([]byte, error) {
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = `version="1.0" encoding="UTF-8"`
		}
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("efin: serializar XML: %w", err)
	}
	return out, nil
}

// findFirst recorre en orden de documento y devuelve el primer elemento con ese nombre local.
func findFirst(root *etree.Element, localName string) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == localName {
		return root
	}
	for _, child := range root.ChildElements() {
		if el := findFirst(child, localName); el != nil {
			return el
		}
	}
	return nil
}

// findAll devuelve todos los elementos con ese nombre local, en orden de documento.
func findAll(root *etree.Element, localName string) []*etree.Element {
	var out []*etree.Element
	walk(root, func(el *etree.Element) {
		if el.Tag == localName {
			out = append(out, el)
		}
	})
	return out
}

func walk(el *etree.Element, visit func(*etree.Element)) {
	if el == nil {
		return
	}
	visit(el)
	for _, child := range el.ChildElements() {
		walk(child, visit)
	}
}

// isSignature indica si el elemento es un <Signature> en el namespace XMLDSig.
func isSignature(el *etree.Element) bool {
	return el.Tag == signatureTag && el.NamespaceURI() == NamespaceDS
}

// scopedCopy copia el elemento sin padre, declarando en él todo namespace (y atributo xml:*)
// heredado de sus ancestros. Su forma canónica coincide con la del subárbol dentro del documento.
func scopedCopy(el *etree.Element) *etree.Element {
	cp := el.Copy()
	declared := make(map[string]bool, len(cp.Attr))
	for _, a := range cp.Attr {
		if k, ok := inheritedKey(a); ok {
			declared[k] = true
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			k, ok := inheritedKey(a)
			if !ok || declared[k] {
				continue
			}
			declared[k] = true
			cp.Attr = append(cp.Attr, a)
		}
	}
	return cp
}

// inheritedKey identifica declaraciones xmlns, xmlns:p y atributos xml:*.
func inheritedKey(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "" && a.Key == "xmlns":
		return "xmlns", true
	case a.Space == "xmlns", a.Space == "xml":
		return a.Space + ":" + a.Key, true
	}
	return "", false
}

// childPath devuelve los índices de token desde root hasta el (Index() de cada nivel).
func childPath(root, el *etree.Element) ([]int, bool) {
	var path []int
	for cur := el; cur != root; cur = cur.Parent() {
		if cur == nil {
			return nil, false
		}
		path = append(path, cur.Index())
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

// followPath resuelve un childPath sobre otro árbol con la misma estructura.
func followPath(root *etree.Element, path []int) *etree.Element {
	cur := root
	for _, idx := range path {
		if idx < 0 || idx >= len(cur.Child) {
			return nil
		}
		next, ok := cur.Child[idx].(*etree.Element)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// removeSignatures quita las firmas XMLDSig hijas directas (re-firmar reemplaza la firma previa).
func removeSignatures(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if isSignature(child) {
			el.RemoveChild(child)
		}
	}
}

func elementText(el *etree.Element, path string) string {
	if el == nil {
		return ""
	}
	found := el.FindElement(path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}
