// Package i18n provides the localized strings for user-visible advisory
// text as a pure lookup table over a fixed language set. It carries no
// state and sits entirely outside the scoring core.
package i18n

// Lang identifies one of the supported languages.
type Lang string

// Supported languages. English is the fallback for unknown languages and
// missing keys.
const (
	LangEN Lang = "en"
	LangES Lang = "es"
	LangDE Lang = "de"
)

const fallbackLang = LangEN

// Key identifies one translatable string.
type Key string

// Translation keys used by the advisory renderer.
const (
	KeyTitle              Key = "title"
	KeySize               Key = "size"
	KeyStall              Key = "stall"
	KeySuggestions        Key = "suggestions"
	KeyConfidence         Key = "confidence"
	KeyNoStrongCandidates Key = "no_strong_candidates"
	KeyStallChanges       Key = "stall_changes_requested"
	KeyStallApproved      Key = "stall_approved_unmerged"
	KeyStallAwaiting      Key = "stall_awaiting_review"
	KeyStallNone          Key = "stall_none"
	KeyTeamCoverage       Key = "team_coverage"
	KeyOpenReviews        Key = "open_reviews"
)

var tables = map[Lang]map[Key]string{
	LangEN: {
		KeyTitle:              "Pull request triage",
		KeySize:               "Change size",
		KeyStall:              "Status",
		KeySuggestions:        "Suggested reviewers",
		KeyConfidence:         "confidence",
		KeyNoStrongCandidates: "No strong reviewer candidates found for these changes.",
		KeyStallChanges:       "Changes requested — waiting on the author.",
		KeyStallApproved:      "Approved but not merged.",
		KeyStallAwaiting:      "Waiting for a first review.",
		KeyStallNone:          "Review in progress.",
		KeyTeamCoverage:       "Team coverage",
		KeyOpenReviews:        "open reviews",
	},
	LangES: {
		KeyTitle:              "Clasificación del pull request",
		KeySize:               "Tamaño del cambio",
		KeyStall:              "Estado",
		KeySuggestions:        "Revisores sugeridos",
		KeyConfidence:         "confianza",
		KeyNoStrongCandidates: "No se encontraron candidatos sólidos para revisar estos cambios.",
		KeyStallChanges:       "Cambios solicitados — esperando al autor.",
		KeyStallApproved:      "Aprobado pero sin fusionar.",
		KeyStallAwaiting:      "Esperando una primera revisión.",
		KeyStallNone:          "Revisión en curso.",
		KeyTeamCoverage:       "Cobertura por equipo",
		KeyOpenReviews:        "revisiones abiertas",
	},
	LangDE: {
		KeyTitle:              "Pull-Request-Triage",
		KeySize:               "Änderungsumfang",
		KeyStall:              "Status",
		KeySuggestions:        "Vorgeschlagene Reviewer",
		KeyConfidence:         "Konfidenz",
		KeyNoStrongCandidates: "Keine geeigneten Reviewer-Kandidaten für diese Änderungen gefunden.",
		KeyStallChanges:       "Änderungen angefordert — wartet auf den Autor.",
		KeyStallApproved:      "Genehmigt, aber nicht gemergt.",
		KeyStallAwaiting:      "Wartet auf ein erstes Review.",
		KeyStallNone:          "Review läuft.",
		KeyTeamCoverage:       "Team-Abdeckung",
		KeyOpenReviews:        "offene Reviews",
	},
}

// T returns the translation for key in lang, falling back to English for
// unknown languages or untranslated keys, and to the key itself as a last
// resort.
func T(lang Lang, key Key) string {
	if table, ok := tables[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	if s, ok := tables[fallbackLang][key]; ok {
		return s
	}
	return string(key)
}

// ParseLang maps a language code to a supported language, falling back to
// English for anything unrecognized.
func ParseLang(code string) Lang {
	switch Lang(code) {
	case LangEN, LangES, LangDE:
		return Lang(code)
	default:
		return fallbackLang
	}
}
