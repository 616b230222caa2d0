package normalizer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRulesDefaultsOnEmptyPath(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.SubjectPrefix != "Patient/" {
		t.Fatalf("expected default subject prefix, got %q", rules.SubjectPrefix)
	}
	if len(rules.AllowedResources) != 2 {
		t.Fatalf("expected 2 default resources, got %v", rules.AllowedResources)
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte("allowed_resources: [Patient, Observation]\nsubject_prefix: \"Subject/\"\nbirth_date_layout: \"02.01.2006\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.SubjectPrefix != "Subject/" {
		t.Fatalf("expected overridden subject prefix, got %q", rules.SubjectPrefix)
	}
	if rules.BirthDateLayout != "02.01.2006" {
		t.Fatalf("expected overridden date layout, got %q", rules.BirthDateLayout)
	}
}

func TestLoadRulesRejectsEmptyResourceList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("allowed_resources: []\n"), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected error for empty resource list")
	}
}
