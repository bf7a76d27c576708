// Package watchlist loads bulk tracking definitions from a YAML file, so a
// fleet of items and their alerts can be seeded in one command.
package watchlist

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Entry is one product to track, with optional pre-armed alerts.
type Entry struct {
	URL    string       `yaml:"url"`
	Name   string       `yaml:"name,omitempty"`
	Alerts []AlertEntry `yaml:"alerts,omitempty"`
}

// AlertEntry arms one alert for its parent entry.
type AlertEntry struct {
	TargetPrice float64 `yaml:"target_price"`
	Notify      string  `yaml:"notify"`
}

// Watchlist is the top-level file structure.
type Watchlist struct {
	Items []Entry `yaml:"items"`
}

// Load reads a watchlist from a YAML file.
func Load(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "watchlist: read %s", path)
	}

	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, eris.Wrap(err, "watchlist: parse")
	}

	for i, item := range wl.Items {
		if item.URL == "" {
			return nil, eris.Errorf("watchlist: item %d has no url", i)
		}
		for j, a := range item.Alerts {
			if a.TargetPrice <= 0 {
				return nil, eris.Errorf("watchlist: item %d alert %d has invalid target price", i, j)
			}
			if a.Notify == "" {
				return nil, eris.Errorf("watchlist: item %d alert %d has no notify target", i, j)
			}
		}
	}
	return &wl, nil
}
