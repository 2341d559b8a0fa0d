// Package db selects the experience store driver from the instance profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/gridsense/internal/profile"
	"github.com/hrygo/gridsense/store"
	"github.com/hrygo/gridsense/store/db/inmem"
	"github.com/hrygo/gridsense/store/db/postgres"
)

// NewDriver creates a store driver for the given profile.
// An empty driver name falls back to the in-memory backend so the learning
// loop keeps working without a database, just without durability.
func NewDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "postgres":
		return postgres.NewDB(p.DSN)
	case "inmem", "":
		return inmem.NewDB(), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", p.Driver)
	}
}
