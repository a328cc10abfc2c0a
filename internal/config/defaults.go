package config

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Classifier modes.
const (
	ClassifierSimulated = "simulated"
	ClassifierHTTP      = "http"
)

const (
	defaultDataDir                   = "~/.local/share/mediaflow"
	defaultLogDir                    = "~/.local/share/mediaflow/logs"
	defaultLocalStorageDir           = "~/.local/share/mediaflow/media"
	defaultBind                      = "127.0.0.1:7590"
	defaultMaxUploadMB               = 500
	defaultMinioBucket               = "mediaflow"
	defaultURLExpirySeconds          = 3600
	defaultClassifierFlagRatio       = 0.2
	defaultClassifierDelayMillis     = 2000
	defaultClassifierTimeout         = 30
	defaultHubCapacity               = 1024
	defaultNATSSubjectPrefix         = "mediaflow"
	defaultNtfyRequestTimeout        = 10
	defaultWorkflowWorkers           = 4
	defaultWorkflowQueueSize         = 64
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultWorkflowReclaimInterval   = 60
	defaultWorkflowRecentTasks       = 100
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultTracingExporter           = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:        defaultBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Storage: Storage{
			Backend:     StorageLocal,
			LocalDir:    defaultLocalStorageDir,
			MinioBucket: defaultMinioBucket,
			URLExpiry:   defaultURLExpirySeconds,
		},
		Classifier: Classifier{
			Mode:           ClassifierSimulated,
			FlagRatio:      defaultClassifierFlagRatio,
			DelayMillis:    defaultClassifierDelayMillis,
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Events: Events{
			HubCapacity:        defaultHubCapacity,
			NATSSubjectPrefix:  defaultNATSSubjectPrefix,
			NtfyRequestTimeout: defaultNtfyRequestTimeout,
		},
		Workflow: Workflow{
			Workers:           defaultWorkflowWorkers,
			QueueSize:         defaultWorkflowQueueSize,
			HeartbeatInterval: defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:  defaultWorkflowHeartbeatTimeout,
			ReclaimInterval:   defaultWorkflowReclaimInterval,
			RecentTasks:       defaultWorkflowRecentTasks,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tracing: Tracing{
			Exporter:    defaultTracingExporter,
			Insecure:    true,
			SampleRatio: 1.0,
		},
	}
}
