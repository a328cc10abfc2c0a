package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nats-io/nats.go"
	"golang.org/x/sys/unix"

	"mediaflow/internal/config"
	"mediaflow/internal/database"
)

const checkTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase opens the configured database, applying the schema if needed,
// and reports its schema version.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Database"
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	db, err := database.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer db.Close()
	health, err := db.CheckHealth(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	target := health.Path
	if target == "" {
		target = health.Driver
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema v%d)", target, health.SchemaVersion)}
}

// CheckHTTPEndpoint verifies that an HTTP service answers. Any response below
// 500 counts as reachable; authentication is checked by the real calls.
func CheckHTTPEndpoint(ctx context.Context, name, endpoint string) Result {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("unhealthy (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckNATS connects to the broker once and disconnects.
func CheckNATS(_ context.Context, url string) Result {
	const name = "NATS"
	conn, err := nats.Connect(url, nats.Name("mediaflow-preflight"), nats.Timeout(checkTimeout), nats.NoReconnect())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer conn.Close()
	return Result{Name: name, Passed: true, Detail: conn.ConnectedUrl()}
}

// CheckMinio verifies credentials and that the configured bucket exists.
func CheckMinio(ctx context.Context, cfg *config.Config) Result {
	const name = "MinIO"
	client, err := minio.New(cfg.Storage.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.MinioAccessKey, cfg.Storage.MinioSecretKey, ""),
		Secure: cfg.Storage.MinioUseSSL,
		Region: cfg.Storage.MinioRegion,
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, cfg.Storage.MinioBucket)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	if !exists {
		return Result{Name: name, Detail: fmt.Sprintf("bucket %q missing (created on daemon start)", cfg.Storage.MinioBucket)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q reachable", cfg.Storage.MinioBucket)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (unreachable)"
	}
	return err.Error()
}
