package models

// TextSystem names one corpus tracked independently by the statistics
// engine. Totals are fixed domain knowledge: 150 Psalms chapters, 929
// Tanakh chapters, 2711 Talmud folio sides, 45 liturgy sections.
type TextSystem string

const (
	SystemPsalms  TextSystem = "psalms"
	SystemTanakh  TextSystem = "tanakh"
	SystemTalmud  TextSystem = "talmud"
	SystemLiturgy TextSystem = "liturgy"
)

// Systems lists every tracked system in display order.
var Systems = []TextSystem{SystemPsalms, SystemTanakh, SystemTalmud, SystemLiturgy}

var knownTotals = map[TextSystem]int{
	SystemPsalms:  150,
	SystemTanakh:  929,
	SystemTalmud:  2711,
	SystemLiturgy: 45,
}

// KnownTotal returns the number of addressable sections in the system, or 0
// for an unknown system.
func (s TextSystem) KnownTotal() int { return knownTotals[s] }

// Known reports whether s is one of the tracked systems.
func (s TextSystem) Known() bool { _, ok := knownTotals[s]; return ok }
