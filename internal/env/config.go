package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Region    string `env:"PARLEY_REGION"`
	DebugHTTP bool   `env:"PARLEY_DEBUG_HTTP"`

	// SnapshotPath, when set, restores the in-memory account directory
	// from this JSON file at boot and writes it back at shutdown.
	SnapshotPath string `env:"PARLEY_SNAPSHOT"`

	// DBPath, when set, switches the account directory to sqlite at
	// this path. Takes precedence over SnapshotPath.
	DBPath string `env:"PARLEY_DB"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
