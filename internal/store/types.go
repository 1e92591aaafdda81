package store

import (
	"time"

	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// Setting is one persisted configuration value.
type Setting struct {
	Key       string
	Value     string
	Secret    bool
	UpdatedAt time.Time
}

// Storage defines the interface for persistence
type Storage interface {
	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
	ListConfig() ([]Setting, error)
	DeleteConfig(key string) (bool, error)

	// Memory snapshots
	SaveSnapshot(name string, entries []vector.Entry) error
	LoadSnapshot(name string) ([]vector.Entry, error)
	ListSnapshots() ([]string, error)

	Close() error
}
