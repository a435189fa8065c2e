package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// CompaniesFile is an optional companies.yml kept next to config.yml so the
// board list can be edited without touching the rules.
type CompaniesFile struct {
	Sources struct {
		Greenhouse      struct{ Companies []Company } `yaml:"greenhouse"`
		Lever           struct{ Companies []Company } `yaml:"lever"`
		SmartRecruiters struct{ Companies []Company } `yaml:"smartrecruiters"`
		Workday         struct{ Companies []Company } `yaml:"workday"`
	} `yaml:"sources"`
}

func OverlayCompanies(cfg *Config, companiesPath string) error {
	b, err := os.ReadFile(companiesPath)
	if err != nil {
		// Missing companies file should not kill startup
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var cf CompaniesFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return err
	}

	if len(cf.Sources.Greenhouse.Companies) > 0 {
		cfg.Sources.Greenhouse.Companies = cf.Sources.Greenhouse.Companies
	}
	if len(cf.Sources.Lever.Companies) > 0 {
		cfg.Sources.Lever.Companies = cf.Sources.Lever.Companies
	}
	if len(cf.Sources.SmartRecruiters.Companies) > 0 {
		cfg.Sources.SmartRecruiters.Companies = cf.Sources.SmartRecruiters.Companies
	}
	if len(cf.Sources.Workday.Companies) > 0 {
		cfg.Sources.Workday.Companies = cf.Sources.Workday.Companies
	}
	return nil
}
