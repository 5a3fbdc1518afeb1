package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type driverListing struct {
	Drivers []struct {
		Name   string `yaml:"name"`
		Driver string `yaml:"driver"`
	} `yaml:"drivers"`
}

// LoadDriverListing reads an optional YAML listing of third-party drivers.
// A missing file is not an error and yields an empty listing.
func LoadDriverListing(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return map[string]string{}, err
	}

	var l driverListing
	if err := yaml.Unmarshal(b, &l); err != nil {
		return map[string]string{}, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[string]string, len(l.Drivers))
	for _, d := range l.Drivers {
		if d.Name == "" || d.Driver == "" {
			continue
		}
		out[d.Name] = d.Driver
	}
	return out, nil
}

// DefaultDriverListing returns the listing built into the binary.
func DefaultDriverListing() (map[string]string, error) {
	b, err := defaultFile(DriversFile)
	if err != nil {
		return nil, err
	}
	var l driverListing
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(l.Drivers))
	for _, d := range l.Drivers {
		out[d.Name] = d.Driver
	}
	return out, nil
}
