// Package i18n holds the translatable user-facing task messages.
//
// Message keys are the English text itself so untranslated languages fall
// back to readable output. Translations are registered with the
// golang.org/x/text default catalog at init time.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	ResolvingMods      = "Resolving mod IDs..."
	ResolveSomeFailed  = "Some mod ID resolving tasks failed."
	ResolveAborted     = "Mod ID resolving was aborted."
	CheckingFMLLibs    = "Checking for FML libraries..."
	DownloadingFMLLibs = "Downloading FML libraries..."
	CopyingFMLLibs     = "Copying FML libraries into the instance..."
	FMLLibDirFailed    = "Failed creating FML library folder inside the instance."
	FMLLibCopyFailed   = "Failed copying Forge/FML library: %s."
	DownloadFailed     = "Failed to download the following files:\n%s\n\nReason:%s\nPlease try again."
	FMLLibsAborted     = "Downloading FML libraries was aborted."
	DownloadingMods    = "Downloading mods..."
	CopyingMods        = "Copying mods into the instance..."
	ModsDirFailed      = "Failed creating mods folder inside the instance."
	ModCopyFailed      = "Failed copying mod: %s."
	ModsAborted        = "Downloading mods was aborted."
)

var german = map[string]string{
	ResolvingMods:      "Mod-IDs werden aufgelöst...",
	ResolveSomeFailed:  "Einige Mod-IDs konnten nicht aufgelöst werden.",
	ResolveAborted:     "Das Auflösen der Mod-IDs wurde abgebrochen.",
	CheckingFMLLibs:    "Suche nach FML-Bibliotheken...",
	DownloadingFMLLibs: "FML-Bibliotheken werden heruntergeladen...",
	CopyingFMLLibs:     "FML-Bibliotheken werden in die Instanz kopiert...",
	FMLLibDirFailed:    "Der FML-Bibliotheksordner konnte in der Instanz nicht erstellt werden.",
	FMLLibCopyFailed:   "Forge/FML-Bibliothek konnte nicht kopiert werden: %s.",
	DownloadFailed:     "Die folgenden Dateien konnten nicht heruntergeladen werden:\n%s\n\nGrund:%s\nBitte erneut versuchen.",
	FMLLibsAborted:     "Das Herunterladen der FML-Bibliotheken wurde abgebrochen.",
	DownloadingMods:    "Mods werden heruntergeladen...",
	CopyingMods:        "Mods werden in die Instanz kopiert...",
	ModsDirFailed:      "Der Mod-Ordner konnte in der Instanz nicht erstellt werden.",
	ModCopyFailed:      "Mod konnte nicht kopiert werden: %s.",
	ModsAborted:        "Das Herunterladen der Mods wurde abgebrochen.",
}

func init() {
	for key, value := range german {
		_ = message.SetString(language.German, key, value)
	}
}

// Printer formats message keys for one language.
type Printer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a printer for the given BCP 47 or POSIX locale string
// ("de", "de-DE", "de_DE.UTF-8"). Unparseable values fall back to English.
func New(locale string) *Printer {
	tag := parseLocale(locale)
	return &Printer{tag: tag, printer: message.NewPrinter(tag)}
}

// Default selects a printer from LC_ALL, LC_MESSAGES or LANG.
func Default() *Printer {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return New(value)
		}
	}
	return New("en")
}

// Sprintf formats key in the printer's language. A nil printer formats in English.
func (p *Printer) Sprintf(key string, args ...any) string {
	if p == nil {
		return English.Sprintf(key, args...)
	}
	return p.printer.Sprintf(key, args...)
}

// Language reports the printer's language tag.
func (p *Printer) Language() language.Tag {
	if p == nil {
		return language.English
	}
	return p.tag
}

// English is the fallback printer used when callers do not supply one.
var English = New("en")

func parseLocale(locale string) language.Tag {
	value := strings.TrimSpace(locale)
	if idx := strings.IndexAny(value, ".@"); idx >= 0 {
		value = value[:idx]
	}
	value = strings.ReplaceAll(value, "_", "-")
	if value == "" || value == "C" || value == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.English
	}
	return tag
}
