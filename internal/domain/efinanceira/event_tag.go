package efinanceira

// EventTag identifica el elemento raíz de un evento e-Financeira conocido.
type EventTag int

const (
	EventUnknown EventTag = iota
	EventCadDeclarante
	EventAberturaeFinanceira
	EventCadIntermediario
	EventCadPatrocinado
	EventFechamentoeFinanceira
	EventExclusaoeFinanceira
	EventMovOpFin
	EventMovOpFinAnual
	EventMovPP
)

var eventElementNames = map[EventTag]string{
	EventCadDeclarante:         "evtCadDeclarante",
	EventAberturaeFinanceira:   "evtAberturaeFinanceira",
	EventCadIntermediario:      "evtCadIntermediario",
	EventCadPatrocinado:        "evtCadPatrocinado",
	EventFechamentoeFinanceira: "evtFechamentoeFinanceira",
	EventExclusaoeFinanceira:   "evtExclusaoeFinanceira",
	EventMovOpFin:              "evtMovOpFin",
	EventMovOpFinAnual:         "evtMovOpFinAnual",
	EventMovPP:                 "evtMovPP",
}

// DetectionOrder es el orden de prioridad fijo con el que se buscan los eventos.
var DetectionOrder = []EventTag{
	EventCadDeclarante,
	EventAberturaeFinanceira,
	EventCadIntermediario,
	EventCadPatrocinado,
	EventFechamentoeFinanceira,
	EventExclusaoeFinanceira,
	EventMovOpFin,
	EventMovOpFinAnual,
	EventMovPP,
}

// ElementName devuelve el nombre local del elemento raíz del evento ("" si es desconocido).
func (t EventTag) ElementName() string {
	return eventElementNames[t]
}

func (t EventTag) String() string {
	if name, ok := eventElementNames[t]; ok {
		return name
	}
	return "desconocido"
}

// EventTagFromElement resuelve un nombre local exacto. La comparación es estructural:
// "evtMovOpFinAnual" nunca se confunde con "evtMovOpFin".
func EventTagFromElement(localName string) (EventTag, bool) {
	for tag, name := range eventElementNames {
		if name == localName {
			return tag, true
		}
	}
	return EventUnknown, false
}
