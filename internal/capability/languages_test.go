package capability

import "testing"

func TestCatalogue(t *testing.T) {
	if len(Languages) != 54 {
		t.Fatalf("expected 54 languages, got %d", len(Languages))
	}
	seen := map[string]bool{}
	for _, l := range Languages {
		if seen[l.Code] {
			t.Fatalf("duplicate code %s", l.Code)
		}
		seen[l.Code] = true
	}
	if LanguageName("zh-TW") != "Chinese (Traditional)" {
		t.Fatalf("unexpected name for zh-TW")
	}
	if LanguageName("xx") != "xx" || LanguageName("") != "Unknown" {
		t.Fatalf("unexpected fallback names")
	}
}

func TestCorrectTarget(t *testing.T) {
	if got := CorrectTarget("en", "fr"); got != "fr" {
		t.Fatalf("distinct target must be kept, got %s", got)
	}
	if got := CorrectTarget("en", "en"); got != "zh" {
		t.Fatalf("expected first other language zh, got %s", got)
	}
	if got := CorrectTarget("zh", "zh"); got != "en" {
		t.Fatalf("expected en, got %s", got)
	}
	if SupportsPair("en", "en") || SupportsPair("en", "xx") || !SupportsPair("en", "de") {
		t.Fatalf("unexpected SupportsPair results")
	}
}

func TestNextLanguageSkipsExcluded(t *testing.T) {
	if got := NextLanguage("en", "zh", 1); got != "zh-TW" {
		t.Fatalf("expected zh-TW, got %s", got)
	}
	if got := NextLanguage("en", "", -1); got != "zu" {
		t.Fatalf("expected wrap to zu, got %s", got)
	}
}

func TestVisibleDetections(t *testing.T) {
	in := []Detection{
		{Language: "fr", Confidence: 0.2},
		{Language: "en", Confidence: 0.7},
		{Language: "de", Confidence: 0.01},
		{Language: "es", Confidence: 0.05},
		{Language: "it", Confidence: 0.03},
	}
	got := VisibleDetections(in, DetectionDisplayLimit)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %v", got)
	}
	if got[0].Language != "en" || got[1].Language != "fr" || got[2].Language != "es" {
		t.Fatalf("unexpected order: %v", got)
	}
	if all := VisibleDetections(in, 0); len(all) != 4 {
		t.Fatalf("expected 4 visible without limit, got %v", all)
	}
}

func TestAutoSource(t *testing.T) {
	if lang, ok := AutoSource([]Detection{{Language: "fr", Confidence: 0.9}}, "en"); !ok || lang != "fr" {
		t.Fatalf("expected fr, got %s %v", lang, ok)
	}
	if _, ok := AutoSource([]Detection{{Language: "fr", Confidence: 0.5}}, "en"); ok {
		t.Fatalf("confidence must exceed 0.5")
	}
	if _, ok := AutoSource([]Detection{{Language: "la", Confidence: 0.9}}, "en"); ok {
		t.Fatalf("languages outside the catalogue must not be selected")
	}
	if _, ok := AutoSource([]Detection{{Language: "en", Confidence: 0.9}}, "en"); ok {
		t.Fatalf("current language must not be reselected")
	}
	if _, ok := AutoSource(nil, "en"); ok {
		t.Fatalf("empty results must not select")
	}
}
