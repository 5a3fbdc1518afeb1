// Package store keeps the module settings that can be changed at runtime in
// a bbolt database.
package store

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket      = "telescope_control"
	settingsKey = "settings"
)

// Settings are the persisted module settings.
type Settings struct {
	// UseServerLogs opens a diagnostic log for every started slot.
	UseServerLogs bool `json:"use_server_logs"`
}

var defaultSettings = Settings{
	UseServerLogs: false,
}

type Store struct {
	db *bolt.DB
}

// New creates a store on db, writing the default settings on first use.
func New(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if err := st.setDefaults(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) setDefaults() error {
	if _, err := s.Settings(); err != nil {
		log.Infof("Setting default module settings")
		return s.SetSettings(defaultSettings)
	}
	return nil
}

// SetSettings saves the settings as a json string in the database.
func (s *Store) SetSettings(cfg Settings) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return b.Put([]byte(settingsKey), value)
	})
}

// Settings retrieves the settings from the database.
func (s *Store) Settings() (Settings, error) {
	var cfg Settings

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(settingsKey))
		if value == nil {
			return fmt.Errorf("key %s not found", settingsKey)
		}

		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
