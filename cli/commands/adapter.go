package commands

import (
	"fmt"

	"github.com/weaselworks/go-stoat/adapters"
	"github.com/weaselworks/go-stoat/adapters/memory"
	"github.com/weaselworks/go-stoat/adapters/postgres"
	"github.com/weaselworks/go-stoat/adapters/sqlite"
	"github.com/weaselworks/go-stoat/cli/config"
)

// openAdapter constructs the storage adapter the config selects.
func openAdapter(cfg *config.Config) (adapters.Adapter, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewAdapter(), nil
	case config.BackendSQLite:
		return sqlite.NewAdapter(cfg.Storage.DSN)
	case config.BackendPostgres:
		var opts []postgres.Option
		if cfg.Storage.Schema != "" {
			opts = append(opts, postgres.WithSchema(cfg.Storage.Schema))
		}
		return postgres.NewAdapter(cfg.Storage.DSN, opts...)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
