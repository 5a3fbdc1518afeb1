// Package catalog loads the read-only list of supported telescope models.
// The list lives in the data directory so users can extend it; a copy that
// is missing or no longer parses is replaced by the one built into the
// binary.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/agnivade/levenshtein"
	log "github.com/sirupsen/logrus"

	"telescope/pkg/telescope"
)

// DeviceModel describes one supported telescope model.
type DeviceModel struct {
	Name         string                   `json:"name"`
	Driver       string                   `json:"driver"`
	Description  string                   `json:"description"`
	Connection   telescope.ConnectionKind `json:"connection"`
	DefaultPort  int                      `json:"default_port,omitempty"`
	DefaultDelay int                      `json:"default_delay"`
	Equinox      telescope.Equinox        `json:"equinox,omitempty"`
}

type modelsFile struct {
	Version string                 `json:"version"`
	Models  map[string]DeviceModel `json:"models"`
}

// Catalog is the immutable set of device models keyed by model id.
type Catalog struct {
	version string
	models  map[string]DeviceModel
	drivers map[string]string
}

// Load parses the device model list in dataDir. If the file is missing or
// corrupt, the built-in list is copied over it and loading is retried once.
// The optional third-party driver listing is read alongside.
func Load(dataDir string, logger log.FieldLogger) (*Catalog, error) {
	path := filepath.Join(dataDir, ModelsFile)

	cat, err := parseModels(path)
	if err != nil {
		logger.Warnf("Device model list %s unusable (%v), restoring default", path, err)
		if err := restoreDefault(path); err != nil {
			return nil, fmt.Errorf("restore device models: %w", err)
		}
		if cat, err = parseModels(path); err != nil {
			return nil, fmt.Errorf("load device models: %w", err)
		}
	}

	drivers, err := LoadDriverListing(filepath.Join(dataDir, DriversFile))
	if err != nil {
		logger.Warnf("Ignoring third-party driver listing: %v", err)
	}
	if len(drivers) == 0 {
		if drivers, err = DefaultDriverListing(); err != nil {
			return nil, fmt.Errorf("load default driver listing: %w", err)
		}
	}
	cat.drivers = drivers

	logger.Infof("Loaded %d device models (catalog version %s)", len(cat.models), cat.version)
	return cat, nil
}

func parseModels(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f modelsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if len(f.Models) == 0 {
		return nil, errors.New("no device models defined")
	}

	return &Catalog{version: f.Version, models: f.Models}, nil
}

// restoreDefault copies the built-in device model list to path.
func restoreDefault(path string) error {
	b, err := defaultFile(ModelsFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Version returns the catalog file version string.
func (c *Catalog) Version() string {
	return c.version
}

// Get returns the model with the given id.
func (c *Catalog) Get(id string) (DeviceModel, bool) {
	m, ok := c.models[id]
	return m, ok
}

// IDs returns all model ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.models))
	for id := range c.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Models returns a copy of the model table.
func (c *Catalog) Models() map[string]DeviceModel {
	out := make(map[string]DeviceModel, len(c.models))
	for id, m := range c.models {
		out[id] = m
	}
	return out
}

// Drivers returns the third-party driver listing, display name to driver
// identifier. It is empty when no listing was found.
func (c *Catalog) Drivers() map[string]string {
	out := make(map[string]string, len(c.drivers))
	for name, drv := range c.drivers {
		out[name] = drv
	}
	return out
}

// Suggest returns the model id closest to id, or "" if the catalog is empty.
func (c *Catalog) Suggest(id string) string {
	best, bestDist := "", -1
	for _, candidate := range c.IDs() {
		d := levenshtein.ComputeDistance(id, candidate)
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
