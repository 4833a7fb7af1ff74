// Package neo4jdb holds the optional Neo4j driver handle. The relational
// store is authoritative; Neo4j mirrors the concept graph for exploration.
package neo4jdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// NewFromEnv returns (nil, nil) when NEO4J_URI is unset.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}

	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}

	user := envutil.GetEnv("NEO4J_USER", "neo4j", log)
	password := os.Getenv("NEO4J_PASSWORD")
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))
	timeoutSec := envutil.GetEnvAsInt("NEO4J_TIMEOUT_SECONDS", 10, log)
	maxPool := envutil.GetEnvAsInt("NEO4J_MAX_POOL_SIZE", 50, log)

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = time.Duration(timeoutSec) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Warn("Neo4j unreachable, graph mirroring disabled", "error", err)
		_ = driver.Close(context.Background())
		return nil, nil
	}

	log.Info("Neo4j initialized", "uri", uri, "database", database)
	return &Client{Driver: driver, Database: database, log: log.With("service", "Neo4jClient")}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	return c.Driver.Close(ctx)
}
