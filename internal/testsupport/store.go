package testsupport

import (
	"context"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/database"
	"mediaflow/internal/jobs"
	"mediaflow/internal/users"
)

// MustOpenDatabase opens the configured database for tests and registers cleanup.
func MustOpenDatabase(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenJobStore opens a jobs.Store backed by a fresh database.
func MustOpenJobStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()
	return jobs.NewStore(MustOpenDatabase(t, cfg))
}

// MustOpenUserStore opens a users.Store backed by a fresh database.
func MustOpenUserStore(t testing.TB, cfg *config.Config) *users.Store {
	t.Helper()
	return users.NewStore(MustOpenDatabase(t, cfg))
}

// MustCreateJob inserts an uploading job owned by owner in org.
func MustCreateJob(t testing.TB, store *jobs.Store, org, owner, name string) *jobs.Job {
	t.Helper()
	job := &jobs.Job{
		Organization: org,
		OwnerID:      owner,
		OriginalName: name,
		Filename:     name,
		MimeType:     "video/mp4",
		StorageRef:   "ref-" + name,
		URL:          "file:///media/" + name,
		SizeBytes:    1024,
	}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}
