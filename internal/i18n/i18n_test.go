package i18n_test

import (
	"strings"
	"testing"

	"golang.org/x/text/language"

	"packfetch/internal/i18n"
)

func TestEnglishFallsBackToKey(t *testing.T) {
	p := i18n.New("en")
	if got := p.Sprintf(i18n.ResolveSomeFailed); got != "Some mod ID resolving tasks failed." {
		t.Fatalf("unexpected english text %q", got)
	}
	got := p.Sprintf(i18n.FMLLibCopyFailed, "scala-library.jar")
	if got != "Failed copying Forge/FML library: scala-library.jar." {
		t.Fatalf("unexpected formatted text %q", got)
	}
}

func TestGermanTranslation(t *testing.T) {
	p := i18n.New("de_DE.UTF-8")
	base, _ := p.Language().Base()
	if base.String() != "de" {
		t.Fatalf("expected german tag, got %v", p.Language())
	}
	got := p.Sprintf(i18n.DownloadFailed, "a.jar", "timeout")
	if !strings.HasPrefix(got, "Die folgenden Dateien") || !strings.Contains(got, "a.jar") {
		t.Fatalf("unexpected german text %q", got)
	}
}

func TestUnknownLocaleUsesEnglish(t *testing.T) {
	for _, locale := range []string{"", "C", "POSIX", "!!"} {
		if tag := i18n.New(locale).Language(); tag != language.English {
			t.Fatalf("locale %q mapped to %v", locale, tag)
		}
	}
}

func TestNilPrinter(t *testing.T) {
	var p *i18n.Printer
	if got := p.Sprintf(i18n.ResolvingMods); got != i18n.ResolvingMods {
		t.Fatalf("nil printer = %q", got)
	}
}

func TestDefaultReadsEnvironment(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	if got := i18n.Default().Sprintf(i18n.ResolvingMods); got != "Mod-IDs werden aufgelöst..." {
		t.Fatalf("expected german from LANG, got %q", got)
	}
}
