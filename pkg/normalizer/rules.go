package normalizer

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rules controls how raw resources map onto flat records. The defaults
// match the FHIR R4/R5 field layout; a yaml file can override them for
// servers with non-standard reference prefixes or date layouts.
type Rules struct {
	AllowedResources []string `yaml:"allowed_resources" json:"allowed_resources"`
	SubjectPrefix    string   `yaml:"subject_prefix" json:"subject_prefix"`
	BirthDateLayout  string   `yaml:"birth_date_layout" json:"birth_date_layout"`
	NamePlaceholder  string   `yaml:"name_placeholder" json:"name_placeholder"`
}

func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, err
	}

	if len(rules.AllowedResources) == 0 {
		return Rules{}, errors.New("no allowed resources configured")
	}

	return rules, nil
}

func DefaultRules() Rules {
	return Rules{
		AllowedResources: []string{"Patient", "Observation"},
		SubjectPrefix:    "Patient/",
		BirthDateLayout:  "2006-01-02",
		NamePlaceholder:  "",
	}
}
