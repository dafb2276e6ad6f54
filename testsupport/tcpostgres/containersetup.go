package tcpostgres

import (
	"context"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultImage = "postgres:17"
	// overrides the image, e.g. to test against another postgres major
	imageEnv = "TESTDB_IMAGE"
)

// PostgresContainer is the postgres container holding the test database.
type PostgresContainer struct {
	testcontainers.Container
	port     nat.Port
	user     string
	password string
	dbName   string
}

type (
	containerConfig struct {
		image    string
		name     string
		port     nat.Port
		user     string
		password string
		dbName   string
		ready    wait.Strategy
	}
	PostgresContainerOption func(*containerConfig)
)

func WithImage(image string) PostgresContainerOption {
	return func(c *containerConfig) {
		c.image = image
	}
}

// WithName names the container. Named containers are reused between test runs.
func WithName(containerName string) PostgresContainerOption {
	return func(c *containerConfig) {
		c.name = containerName
	}
}

func WithInitialDatabase(user, password, dbName string) PostgresContainerOption {
	return func(c *containerConfig) {
		c.user, c.password, c.dbName = user, password, dbName
	}
}

func WithWaitStrategy(strategies ...wait.Strategy) PostgresContainerOption {
	return func(c *containerConfig) {
		c.ready = wait.ForAll(strategies...).WithDeadline(1 * time.Minute)
	}
}

// SetupPostgres starts (or reuses) the postgres container
func SetupPostgres(ctx context.Context, opts ...PostgresContainerOption) (
	*PostgresContainer, error,
) {
	cfg := &containerConfig{
		image:    defaultImage,
		port:     "5432/tcp",
		user:     "postgres",
		password: "password",
		dbName:   "postgres",
		ready: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}
	if img := os.Getenv(imageEnv); img != "" {
		cfg.image = img
	}
	for _, opt := range opts {
		opt(cfg)
	}

	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        cfg.image,
				Name:         cfg.name,
				ExposedPorts: []string{string(cfg.port)},
				Env: map[string]string{
					"POSTGRES_USER":     cfg.user,
					"POSTGRES_PASSWORD": cfg.password,
					"POSTGRES_DB":       cfg.dbName,
				},
				// test data need not survive a crash
				Cmd:        []string{"postgres", "-c", "fsync=off"},
				WaitingFor: cfg.ready,
			},
			Started: true,
			Reuse:   cfg.name != "",
		})
	if err != nil {
		return nil, err
	}

	return &PostgresContainer{
		Container: container,
		port:      cfg.port,
		user:      cfg.user,
		password:  cfg.password,
		dbName:    cfg.dbName,
	}, nil
}

// ConnectionString returns the url of the database inside the container.
func (c *PostgresContainer) ConnectionString(ctx context.Context) (string, error) {
	mapped, err := c.MappedPort(ctx, c.port)
	if err != nil {
		return "", err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	return "postgresql://" + c.user + ":" + c.password + "@" +
		host + ":" + mapped.Port() + "/" + c.dbName, nil
}
