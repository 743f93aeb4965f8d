package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedConfig is the YAML shape of configs/sources.yaml:
//
//	sources:
//	  - type: rss
//	    name: ТАСС
//	    url: https://tass.ru/rss/v2.xml
//	  - type: site
//	    name: Кремль
//	    url: http://kremlin.ru/events/president/news
//	    meta:
//	      selector: "div.hentry"
type SeedConfig struct {
	Sources []SeedEntry `yaml:"sources"`
}

type SeedEntry struct {
	Type string            `yaml:"type"`
	Name string            `yaml:"name"`
	URL  string            `yaml:"url"`
	Meta map[string]string `yaml:"meta"`
}

// LoadSeed reads the optional source seed file. A missing file is not an
// error: the admin surface can populate sources at runtime instead.
func LoadSeed(path string) ([]SeedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var cfg SeedConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, entry := range cfg.Sources {
		if _, ok := ParseType(entry.Type); !ok {
			return nil, fmt.Errorf("%s: unknown source type %q for %q", path, entry.Type, entry.Name)
		}
		if entry.Name == "" || entry.URL == "" {
			return nil, fmt.Errorf("%s: source entries need both name and url", path)
		}
	}
	return cfg.Sources, nil
}
