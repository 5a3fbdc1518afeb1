package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"telescope/pkg/telescope"
)

// Path returns the location of the descriptor file.
func (c *Control) Path() string {
	return filepath.Join(c.dataDir, ConnectionsFile)
}

// SaveAll writes the registry to the descriptor file. The file is replaced
// atomically so a crash never leaves it truncated.
func (c *Control) SaveAll() error {
	doc := make(map[string]telescope.Descriptor, len(c.descriptors))
	for slot, d := range c.descriptors {
		doc[strconv.Itoa(slot)] = d
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode telescopes: %w", err)
	}

	if err := writeFileAtomic(c.Path(), data); err != nil {
		return fmt.Errorf("save telescopes: %w", err)
	}
	c.logger.Debugf("Saved %d telescopes to %s", len(doc), c.Path())
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadAll replaces the registry with the content of the descriptor file and
// starts the telescopes marked to connect at startup. A missing or unreadable
// file leaves the registry empty. The returned error only reports slots that
// failed to start.
func (c *Control) LoadAll() error {
	if err := c.StopAll(); err != nil {
		c.logger.Warnf("Stopping telescopes before reload: %v", err)
	}
	clear(c.descriptors)

	data, err := os.ReadFile(c.Path())
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Infof("No telescopes configured yet (%s not found)", c.Path())
		return nil
	}
	if err != nil {
		c.logger.Errorf("Reading %s: %v", c.Path(), err)
		return nil
	}

	var doc map[string]telescope.Descriptor
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Errorf("Ignoring corrupt %s: %v", c.Path(), err)
		return nil
	}

	for key, d := range doc {
		slot, err := strconv.Atoi(key)
		if err != nil || !telescope.IsValidSlot(slot) {
			c.logger.Warnf("Ignoring telescope %q at invalid slot %q", d.Name, key)
			continue
		}
		if d.UniqueID == "" {
			d.UniqueID = telescope.UniqueID(slot, d.Name)
		}
		c.descriptors[slot] = d
	}
	c.logger.Infof("Loaded %d telescopes from %s", len(c.descriptors), c.Path())

	var errs []error
	for _, slot := range sortedKeys(c.descriptors) {
		if !c.descriptors[slot].AutoConnect {
			continue
		}
		if err := c.StartAtSlot(slot); err != nil {
			c.logger.WithField("slot", slot).Errorf("Auto-connect failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
