package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateTracing()
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or set MEDIAFLOW_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (want sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case StorageMinio:
		if c.Storage.MinioEndpoint == "" {
			return errors.New("storage.minio_endpoint must be set when storage.backend is minio")
		}
		if c.Storage.MinioBucket == "" {
			return errors.New("storage.minio_bucket must be set when storage.backend is minio")
		}
		if c.Storage.MinioAccessKey == "" || c.Storage.MinioSecretKey == "" {
			return errors.New("storage.minio_access_key and storage.minio_secret_key must be set (or MEDIAFLOW_MINIO_ACCESS_KEY / MEDIAFLOW_MINIO_SECRET_KEY)")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want local or minio)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	switch c.Classifier.Mode {
	case ClassifierSimulated:
		if c.Classifier.FlagRatio < 0 || c.Classifier.FlagRatio > 1 {
			return errors.New("classifier.flag_ratio must be between 0 and 1")
		}
		if c.Classifier.DelayMillis < 0 {
			return errors.New("classifier.delay_millis must not be negative")
		}
	case ClassifierHTTP:
		if c.Classifier.URL == "" {
			return errors.New("classifier.url must be set when classifier.mode is http")
		}
		if c.Classifier.TimeoutSeconds <= 0 {
			return errors.New("classifier.timeout_seconds must be positive")
		}
	default:
		return fmt.Errorf("classifier.mode: unsupported value %q (want simulated or http)", c.Classifier.Mode)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.NtfyTopic != "" && c.Events.NtfyRequestTimeout <= 0 {
		return errors.New("events.ntfy_request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":          c.Workflow.Workers,
		"workflow.queue_size":       c.Workflow.QueueSize,
		"workflow.reclaim_interval": c.Workflow.ReclaimInterval,
		"workflow.recent_tasks":     c.Workflow.RecentTasks,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateTracing() error {
	switch c.Tracing.Exporter {
	case "none", "stdout", "otlphttp", "otlpgrpc":
		return nil
	default:
		return fmt.Errorf("tracing.exporter: unsupported value %q (want none, stdout, otlphttp, otlpgrpc)", c.Tracing.Exporter)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
