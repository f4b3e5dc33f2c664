package i18n

import (
	"golang.org/x/text/language"

	"webdash/internal/generation"
)

// Key identifies one user-facing message.
type Key string

const (
	KeyCreatingSite         Key = "step.creating_site"
	KeyGeneratingSitemap    Key = "step.generating_sitemap"
	KeyDesigningPages       Key = "step.designing_pages"
	KeyOptimizingForDevices Key = "step.optimizing_for_devices"
	KeyFinalizing           Key = "step.finalizing"
	KeyComplete             Key = "outcome.complete"
	KeyFailed               Key = "outcome.failed"
	KeyCancelled            Key = "outcome.cancelled"
)

var supported = []language.Tag{
	language.English,    // en: default
	language.Indonesian, // id
	language.Spanish,    // es
}

var matcher = language.NewMatcher(supported)

var catalog = map[string]map[Key]string{
	"en": {
		KeyCreatingSite:         "Creating your site",
		KeyGeneratingSitemap:    "Generating the sitemap",
		KeyDesigningPages:       "Designing your pages",
		KeyOptimizingForDevices: "Optimizing for all devices",
		KeyFinalizing:           "Finalizing your website",
		KeyComplete:             "Your website is ready",
		KeyFailed:               "Website generation failed",
		KeyCancelled:            "Website generation cancelled",
	},
	"id": {
		KeyCreatingSite:         "Membuat situs Anda",
		KeyGeneratingSitemap:    "Menyusun peta situs",
		KeyDesigningPages:       "Mendesain halaman Anda",
		KeyOptimizingForDevices: "Mengoptimalkan untuk semua perangkat",
		KeyFinalizing:           "Menyelesaikan situs web Anda",
		KeyComplete:             "Situs web Anda sudah siap",
		KeyFailed:               "Pembuatan situs web gagal",
		KeyCancelled:            "Pembuatan situs web dibatalkan",
	},
	"es": {
		KeyCreatingSite:         "Creando tu sitio",
		KeyGeneratingSitemap:    "Generando el mapa del sitio",
		KeyDesigningPages:       "Diseñando tus páginas",
		KeyOptimizingForDevices: "Optimizando para todos los dispositivos",
		KeyFinalizing:           "Finalizando tu sitio web",
		KeyComplete:             "Tu sitio web está listo",
		KeyFailed:               "La generación del sitio web falló",
		KeyCancelled:            "Generación del sitio web cancelada",
	},
}

// Message returns the localized text for key. Unknown locales fall back to
// English through the language matcher, never to an empty string.
func Message(locale string, key Key) string {
	base := resolve(locale)
	if msg, ok := catalog[base][key]; ok {
		return msg
	}
	return catalog["en"][key]
}

// StepMessage maps a generation step to its localized label.
func StepMessage(locale string, step generation.Step) string {
	switch step {
	case generation.StepCreatingSite:
		return Message(locale, KeyCreatingSite)
	case generation.StepGeneratingSitemap:
		return Message(locale, KeyGeneratingSitemap)
	case generation.StepDesigningPages:
		return Message(locale, KeyDesigningPages)
	case generation.StepOptimizingForDevices:
		return Message(locale, KeyOptimizingForDevices)
	case generation.StepFinalizing:
		return Message(locale, KeyFinalizing)
	}
	return Message(locale, KeyCreatingSite)
}

func resolve(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	_, idx, _ := matcher.Match(tag)
	base, _ := supported[idx].Base()
	return base.String()
}
