package postgres

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
	"github.com/marcodd23/go-micro-dbcmd/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresContainerImage = "docker.io/postgres:16-alpine"
	postgresContainerPort  = "5432/tcp"

	// DefaultInitScript - schema used by the integration tests, relative to the project root.
	DefaultInitScript = "test/testcontainer/postgres/init_schema.sql"

	MainDbName     = "main-db"
	MainDbUser     = "postgres"
	MainDbPassword = "password"
)

// PostgresContainer represents the postgres Container type used in the module.
type PostgresContainer struct {
	Container  *postgres.PostgresContainer
	MappedPort nat.Port
	Host       string
	DbName     string
	DbUser     string
	DbPassword string
}

// StartPostgresContainer - starts a postgres container initialised with DefaultInitScript.
func StartPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	return StartPostgresContainerWithInitScript(ctx, t, DefaultInitScript)
}

// StartPostgresContainerWithInitScript - starts a postgres container initialised with the given script.
func StartPostgresContainerWithInitScript(ctx context.Context, t *testing.T, initScriptPath string) *PostgresContainer {
	test.ConfigTestRootPath()

	pg, err := postgres.Run(ctx,
		postgresContainerImage,
		postgres.WithInitScripts(filepath.Clean(initScriptPath)),
		postgres.WithDatabase(MainDbName),
		postgres.WithUsername(MainDbUser),
		postgres.WithPassword(MainDbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)

	require.NoError(t, err)
	require.NotNil(t, pg)

	mappedPort, err := pg.MappedPort(ctx, postgresContainerPort)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)

	log.Printf("Postgres running at %s:%s", host, mappedPort.Port())

	return &PostgresContainer{
		Container:  pg,
		MappedPort: mappedPort,
		Host:       host,
		DbName:     MainDbName,
		DbUser:     MainDbUser,
		DbPassword: MainDbPassword,
	}
}

// ConnConfig - connection configuration pointing at the container.
func (c *PostgresContainer) ConnConfig() dbx.ConnConfig {
	return dbx.ConnConfig{
		IsLocalEnv: true,
		Host:       c.Host,
		Port:       int32(c.MappedPort.Int()),
		DBName:     c.DbName,
		User:       c.DbUser,
		Password:   c.DbPassword,
		MaxConn:    1,
	}
}

// SetupProvider - creates a pgxdb.Provider connected to the container. The provider is closed with the test.
func (c *PostgresContainer) SetupProvider(ctx context.Context, t *testing.T, preparedStatements ...dbx.PreparedStatement) *pgxdb.Provider {
	provider, err := pgxdb.SetupPostgresProvider(ctx, c.ConnConfig(), preparedStatements...)
	require.NoError(t, err)

	t.Cleanup(provider.Close)

	return provider
}

// StopContainer - terminates the container.
func (c *PostgresContainer) StopContainer(ctx context.Context, t *testing.T) {
	logx.GetLogger().LogInfo(ctx, "Terminating the Container ....")

	err := c.Container.Terminate(ctx)
	require.NoError(t, err, fmt.Sprintf("error stopping the Container %v", err))
}
