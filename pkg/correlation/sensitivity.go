package correlation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SensitivityGroup is a family of foods sharing a known intolerance mechanism.
// A food matches when its name contains any keyword, case-insensitively.
type SensitivityGroup struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Insight  string   `yaml:"insight" json:"insight"`
}

type SensitivityCatalog struct {
	Groups []SensitivityGroup `yaml:"groups" json:"groups"`
}

func LoadSensitivityCatalog(path string) (SensitivityCatalog, error) {
	if path == "" {
		return DefaultSensitivityCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultSensitivityCatalog(), err
	}

	var cat SensitivityCatalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return SensitivityCatalog{}, err
	}
	if len(cat.Groups) == 0 {
		return SensitivityCatalog{}, errors.New("sensitivity catalog empty")
	}
	for i, g := range cat.Groups {
		if g.Name == "" || g.Insight == "" || len(g.Keywords) == 0 {
			return SensitivityCatalog{}, fmt.Errorf("sensitivity group %d incomplete", i)
		}
	}
	return cat, nil
}

func (g SensitivityGroup) Matches(food string) bool {
	name := strings.ToLower(food)
	for _, kw := range g.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func DefaultSensitivityCatalog() SensitivityCatalog {
	return SensitivityCatalog{Groups: []SensitivityGroup{
		{
			Name: "fodmap",
			Keywords: []string{
				"bean", "lentil", "chickpea", "onion", "garlic",
				"frijol", "lenteja", "garbanzo", "cebolla", "ajo",
			},
			Insight: "Several of your suspected trigger foods are high in FODMAPs. A supervised low-FODMAP trial may help identify a fermentable carbohydrate sensitivity.",
		},
		{
			Name: "histamine",
			Keywords: []string{
				"aged cheese", "cheese", "yogurt", "yoghurt", "tomato", "fermented", "sauerkraut", "kimchi",
				"queso", "yogur", "tomate", "fermentado",
			},
			Insight: "Some of your suspected trigger foods are rich in histamine. Discuss a possible histamine intolerance with your practitioner.",
		},
	}}
}
