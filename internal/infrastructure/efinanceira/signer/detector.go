package signer

import (
	"github.com/beevik/etree"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// Detect devuelve el primer evento conocido presente según el orden de prioridad fijo.
// Compara nombres locales parseados, nunca subcadenas.
func Detect(doc *etree.Document) (efinanceira.EventTag, error) {
	return DetectElement(doc.Root())
}

// DetectStrict es como Detect pero falla si hay más de un tipo de evento distinto.
func DetectStrict(doc *etree.Document) (efinanceira.EventTag, error) {
	return DetectStrictElement(doc.Root())
}

func DetectElement(root *etree.Element) (efinanceira.EventTag, error) {
	present := presentTags(root)
	for _, tag := range efinanceira.DetectionOrder {
		if present[tag] {
			return tag, nil
		}
	}
	return efinanceira.EventUnknown, &efinanceira.TargetError{Kind: efinanceira.ErrUnknownEventType, Element: rootName(root)}
}

func DetectStrictElement(root *etree.Element) (efinanceira.EventTag, error) {
	present := presentTags(root)
	if len(present) > 1 {
		var found efinanceira.EventTag
		for _, tag := range efinanceira.DetectionOrder {
			if present[tag] {
				found = tag
				break
			}
		}
		return efinanceira.EventUnknown, &efinanceira.TargetError{Kind: efinanceira.ErrAmbiguousEventType, Element: found.ElementName()}
	}
	return DetectElement(root)
}

func presentTags(root *etree.Element) map[efinanceira.EventTag]bool {
	present := make(map[efinanceira.EventTag]bool)
	walk(root, func(el *etree.Element) {
		if tag, ok := efinanceira.EventTagFromElement(el.Tag); ok {
			present[tag] = true
		}
	})
	return present
}

func rootName(root *etree.Element) string {
	if root == nil {
		return ""
	}
	return root.Tag
}
