package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoTitleRules    = errors.New("rules.title needs at least one of exact_roles, domain_phrases, base_roles")
	ErrNoLocationRules = errors.New("rules.location.city_phrases must have at least 1 term")
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}
	switch cfg.State.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("state.backend must be json or sqlite, got %q", cfg.State.Backend))
	}
	if strings.TrimSpace(cfg.State.Path) == "" {
		errs = append(errs, "state.path is required")
	}

	checkTerms := func(name string, terms []string) {
		for i, term := range terms {
			if strings.TrimSpace(term) == "" {
				errs = append(errs, fmt.Sprintf("%s[%d] cannot be empty", name, i))
			}
		}
	}

	t := cfg.Rules.Title
	if len(t.ExactRoles)+len(t.DomainPhrases)+len(t.BaseRoles) == 0 {
		errs = append(errs, ErrNoTitleRules.Error())
	}
	if len(t.DomainPhrases) > 0 && len(t.DomainSeniority) == 0 {
		errs = append(errs, "rules.title.domain_seniority must have at least 1 term when domain_phrases is set")
	}
	if len(t.BaseRoles) > 0 && len(t.BaseSeniority) == 0 {
		errs = append(errs, "rules.title.base_seniority must have at least 1 term when base_roles is set")
	}
	checkTerms("rules.title.exact_roles", t.ExactRoles)
	checkTerms("rules.title.domain_phrases", t.DomainPhrases)
	checkTerms("rules.title.domain_seniority", t.DomainSeniority)
	checkTerms("rules.title.base_roles", t.BaseRoles)
	checkTerms("rules.title.base_seniority", t.BaseSeniority)

	l := cfg.Rules.Location
	if len(l.CityPhrases) == 0 {
		errs = append(errs, ErrNoLocationRules.Error())
	}
	checkTerms("rules.location.city_phrases", l.CityPhrases)
	checkTerms("rules.location.remote_words", l.RemoteWords)
	checkTerms("rules.location.remote_city", l.RemoteCity)
	checkTerms("rules.location.remote_regions", l.RemoteRegions)

	for i, b := range cfg.Sources.HTMLBoards {
		if strings.TrimSpace(b.URL) == "" {
			errs = append(errs, fmt.Sprintf("sources.html_boards[%d].url is required", i))
		}
		if strings.TrimSpace(b.ItemSelector) == "" {
			errs = append(errs, fmt.Sprintf("sources.html_boards[%d].item_selector is required", i))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n- ")
}
