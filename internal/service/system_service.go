package service

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

// AppVersion is the engine release, stamped at build time via -ldflags.
var AppVersion = "dev"

// SystemService provides health and version information.
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{db: db}
}

// CheckHealth verifies database connectivity.
func (s *SystemService) CheckHealth() error {
	return s.db.Ping()
}

// SchemaVersion returns the applied migration version.
func (s *SystemService) SchemaVersion() (int64, error) {
	return goose.GetDBVersion(s.db)
}
