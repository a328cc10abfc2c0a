package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/database"
	"mediaflow/internal/jobs"
	"mediaflow/internal/users"
)

// TokenEnv names the environment variable holding the CLI bearer token.
const TokenEnv = "MEDIAFLOW_TOKEN"

type globalFlags struct {
	config string
	server string
	token  string
	json   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// serverURL resolves the daemon base URL from --server or server.bind.
func (c *commandContext) serverURL() (string, error) {
	if value := strings.TrimRight(strings.TrimSpace(c.flags.server), "/"); value != "" {
		return value, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return "", errors.New("server.bind is empty; pass --server")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "", fmt.Errorf("parse server.bind %q: %w", bind, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func (c *commandContext) client() (*apiClient, error) {
	base, err := c.serverURL()
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(c.flags.token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(TokenEnv))
	}
	if token == "" {
		return nil, fmt.Errorf("no token: pass --token or set %s", TokenEnv)
	}
	return newAPIClient(base, token), nil
}

// withStores opens the configured database for commands that bypass the daemon.
func (c *commandContext) withStores(ctx context.Context, fn func(context.Context, *jobs.Store, *users.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(ctx, jobs.NewStore(db), users.NewStore(db))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
