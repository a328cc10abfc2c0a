package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeClassifier()
	c.normalizeEvents()
	c.normalizeLogging()
	c.normalizeTracing()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SeedFile) != "" {
		if c.Paths.SeedFile, err = expandPath(c.Paths.SeedFile); err != nil {
			return fmt.Errorf("paths.seed_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" || c.Database.Driver == "sqlite3" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == "postgresql" || c.Database.Driver == "pgx" {
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_DATABASE_DSN"); ok {
			c.Database.DSN = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageLocal
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.MinioEndpoint = strings.TrimSpace(c.Storage.MinioEndpoint)
	if c.Storage.MinioAccessKey == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_MINIO_ACCESS_KEY"); ok {
			c.Storage.MinioAccessKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.MinioSecretKey == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_MINIO_SECRET_KEY"); ok {
			c.Storage.MinioSecretKey = strings.TrimSpace(value)
		}
	}
	c.Storage.MinioBucket = strings.TrimSpace(c.Storage.MinioBucket)
	if c.Storage.URLExpiry <= 0 {
		c.Storage.URLExpiry = defaultURLExpirySeconds
	}
	return nil
}

func (c *Config) normalizeClassifier() {
	c.Classifier.Mode = strings.ToLower(strings.TrimSpace(c.Classifier.Mode))
	if c.Classifier.Mode == "" {
		c.Classifier.Mode = ClassifierSimulated
	}
	c.Classifier.URL = strings.TrimSpace(c.Classifier.URL)
	if c.Classifier.APIKey == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_CLASSIFIER_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEvents() {
	if c.Events.HubCapacity <= 0 {
		c.Events.HubCapacity = defaultHubCapacity
	}
	if strings.TrimSpace(c.Events.NATSURL) == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_NATS_URL"); ok {
			c.Events.NATSURL = value
		}
	}
	c.Events.NATSURL = strings.TrimSpace(c.Events.NATSURL)
	c.Events.NATSSubjectPrefix = strings.Trim(strings.TrimSpace(c.Events.NATSSubjectPrefix), ".")
	if c.Events.NATSSubjectPrefix == "" {
		c.Events.NATSSubjectPrefix = defaultNATSSubjectPrefix
	}
	if strings.TrimSpace(c.Events.NtfyTopic) == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_NTFY_TOPIC"); ok {
			c.Events.NtfyTopic = value
		}
	}
	c.Events.NtfyTopic = strings.TrimSpace(c.Events.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeTracing() {
	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaultTracingExporter
	}
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	if c.Tracing.SampleRatio < 0 {
		c.Tracing.SampleRatio = 0
	}
	if c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}
