package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/config"
)

// Pinger is implemented by stores that depend on an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewStore builds the store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.SessionConfig, log zerolog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		store, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sql":
		store, err := OpenSQLStore(ctx, cfg.SQL, DefaultSweepInterval, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q (want memory, redis or sql)", cfg.Backend)
	}
}
