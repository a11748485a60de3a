package correlation

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensitivities.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadSensitivityCatalogDefault(t *testing.T) {
	cat, err := LoadSensitivityCatalog("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Groups) != 2 || cat.Groups[0].Name != "fodmap" || cat.Groups[1].Name != "histamine" {
		t.Fatalf("unexpected default catalog %+v", cat.Groups)
	}
}

func TestLoadSensitivityCatalogMissingFile(t *testing.T) {
	cat, err := LoadSensitivityCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if len(cat.Groups) != 2 {
		t.Fatalf("expected default catalog alongside the error, got %+v", cat)
	}
}

func TestLoadSensitivityCatalogFromFile(t *testing.T) {
	path := writeCatalog(t, `
groups:
  - name: gluten
    keywords: [wheat, barley, trigo]
    insight: Gluten containing foods keep showing up.
`)
	cat, err := LoadSensitivityCatalog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Groups) != 1 || !cat.Groups[0].Matches("Whole WHEAT toast") {
		t.Fatalf("unexpected catalog %+v", cat)
	}

	analysis := NewAggregator(cat, nil).Analyze(nil, nil)
	if len(analysis.Insights) != 1 || analysis.Insights[0] != keepLoggingInsight {
		t.Fatalf("custom catalog must not fire without foods, got %v", analysis.Insights)
	}
}

func TestLoadSensitivityCatalogRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"empty":      "groups: []\n",
		"incomplete": "groups:\n  - name: dairy\n    keywords: [milk]\n",
		"malformed":  "groups: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSensitivityCatalog(writeCatalog(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSensitivityGroupMatchesSpanish(t *testing.T) {
	cat := DefaultSensitivityCatalog()
	if !cat.Groups[0].Matches("Sopa de Lentejas") {
		t.Fatal("expected lentejas to match the fodmap group")
	}
	if !cat.Groups[1].Matches("Queso manchego") {
		t.Fatal("expected queso to match the histamine group")
	}
	if cat.Groups[0].Matches("Rice") || cat.Groups[1].Matches("Rice") {
		t.Fatal("rice must not match any group")
	}
}
