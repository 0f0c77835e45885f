package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoURLEnv names the variable holding the MongoDB URL used by integration
// tests. When unset, a MongoDB container is started instead.
const MongoURLEnv = "DOCROUTE_TEST_MONGO_URL"

const containerStartup = 60 * time.Second

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireMongo returns the URL of a MongoDB database for integration tests.
// The URL path names the database, e.g. mongodb://localhost:27017/docroute_test.
func RequireMongo(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)
	if url := os.Getenv(MongoURLEnv); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := tcmongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	terminateOnCleanup(t, container)

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get MongoDB connection string: %v", err)
	}
	return connStr + "/docroute_test"
}

// StartRedis runs a Redis container for the test and returns its URL.
func StartRedis(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(containerStartup),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	terminateOnCleanup(t, container)

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}
	return connStr
}

func terminateOnCleanup(t *testing.T, c testcontainers.Container) {
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})
}
