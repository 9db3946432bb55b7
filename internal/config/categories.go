package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category is one arXiv subject subscription.
type Category struct {
	Name       string `yaml:"category"`
	MaxResults int    `yaml:"max_results"`
}

// LoadCategories reads the subscribed arXiv categories from a YAML
// file of {category, max_results} entries.
func LoadCategories(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read categories file %s", path)
	}

	var cats []Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, eris.Wrapf(err, "config: parse categories file %s", path)
	}
	if len(cats) == 0 {
		return nil, eris.Errorf("config: categories file %s lists no categories", path)
	}
	for i, c := range cats {
		if c.Name == "" {
			return nil, eris.Errorf("config: categories file %s entry %d has no category", path, i+1)
		}
	}
	return cats, nil
}
