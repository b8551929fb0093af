package pgxdb

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/validator"
)

//###################################
//#    Provider - pgx pool based    #
//###################################

// Provider - PostgreSQL connection provider backed by a pgxpool.Pool.
// It implements dbx.ConnectionProvider, dbx.TransientClassifier and dbx.BackOffProvider.
type Provider struct {
	pool      *pgxpool.Pool
	dbConf    dbx.ConnConfig
	prepared  map[string]struct{}
	closeOnce sync.Once
	closers   []func()
}

var _ dbx.ConnectionProvider = (*Provider)(nil)
var _ dbx.TransientClassifier = (*Provider)(nil)
var _ dbx.BackOffProvider = (*Provider)(nil)

// SetupPostgresProvider - validates the configuration, creates the connection pool and returns the Provider.
//
// Arguments:
//   - ctx: The context used while creating the pool.
//   - dbConf: The connection configuration.
//   - preparedStatements: statements prepared on every new physical connection.
//
// Returns:
//   - *Provider: The provider, to be closed with Close when no longer needed.
//   - error: A validation error, or a DatabaseError if the pool cannot be created.
func SetupPostgresProvider(ctx context.Context, dbConf dbx.ConnConfig, preparedStatements ...dbx.PreparedStatement) (*Provider, error) {
	if err := validator.Validate(dbConf); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "invalid connection configuration")
	}

	poolConfig, err := createConnectionConfiguration(dbConf)
	if err != nil {
		return nil, err
	}

	closers, err := configureAuth(ctx, poolConfig, dbConf)
	if err != nil {
		return nil, err
	}

	// Setup prepared statements
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return setupPreparedStatements(ctx, conn, preparedStatements...)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		runClosers(closers)
		return nil, errorx.NewDatabaseErrorWrapper(err, "error creating new connection pool")
	}

	logx.
		GetLogger().
		LogInfo(ctx, fmt.Sprintf("Created new Connection Pool: DB=%s, HOST=%s, PORT=%d, AUTH=%s",
			pool.Config().ConnConfig.Database,
			pool.Config().ConnConfig.Host,
			pool.Config().ConnConfig.Port,
			dbConf.EffectiveAuthMode()))

	prepared := make(map[string]struct{}, len(preparedStatements))
	for _, stmt := range preparedStatements {
		prepared[stmt.GetName()] = struct{}{}
	}

	return &Provider{pool: pool, dbConf: dbConf, prepared: prepared, closers: closers}, nil
}

func createConnectionConfiguration(dbConf dbx.ConnConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error creating connection pool config")
	}

	if dbConf.EffectiveAuthMode() == dbx.AuthPassword && dbConf.Password == "" {
		return nil, errorx.NewDatabaseError("error creating connection pool config: DB_Password is EMPTY")
	}

	poolConfig.ConnConfig.Database = dbConf.DBName
	poolConfig.ConnConfig.User = dbConf.User
	poolConfig.ConnConfig.Password = dbConf.Password

	if dbConf.MaxConn > 0 {
		poolConfig.MaxConns = int32(runtime.NumCPU()) * dbConf.MaxConn
	}

	if dbConf.IsLocalEnv || dbConf.VpcDirectConnection || dbConf.EffectiveAuthMode() != dbx.AuthPassword {
		// If local we need to specify the port, if not local
		// the port is defined in the Unix Socket configuration
		// mounted in the container at runtime (5432)
		poolConfig.ConnConfig.Host = dbConf.Host
		if dbConf.Port > 0 {
			poolConfig.ConnConfig.Port = uint16(dbConf.Port)
		}
	} else {
		logx.GetLogger().LogInfo(context.TODO(), "Connecting to DB trough CLOUD SQL PROXY")
		poolConfig.ConnConfig.Host = fmt.Sprintf("/cloudsql/%s", dbConf.Host)
	}

	return poolConfig, nil
}

func setupPreparedStatements(ctx context.Context, conn *pgx.Conn, preparesStatements ...dbx.PreparedStatement) error {
	for _, stmt := range preparesStatements {
		_, err := conn.Prepare(ctx, stmt.GetName(), stmt.GetQuery())
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "failed to prepare statement '%s'", stmt.GetName())
		}
	}

	return nil
}

// NewConnection - returns a fresh, unopened connection bound to the pool.
func (p *Provider) NewConnection() (dbx.Connection, error) {
	if p.pool == nil {
		return nil, errorx.NewDatabaseError("error, Connection Pool To DB not initialized")
	}

	return &pgConnection{pool: p.pool, prepared: p.prepared}, nil
}

// IsTransient - classifies err with IsTransientError.
func (p *Provider) IsTransient(err error) bool {
	return IsTransientError(err)
}

// NewBackOff - the exponential delay between two attempts of a Client without its own backoff.
func (p *Provider) NewBackOff() backoff.BackOff {
	return DefaultBackOff(nil)()
}

// Pool - the underlying pool.
func (p *Provider) Pool() *pgxpool.Pool {
	return p.pool
}

// GetConnectionConfig - get Db Connection config.
func (p *Provider) GetConnectionConfig() dbx.ConnConfig {
	return p.dbConf
}

// Close - closes the pool and releases the cloud dialers. Safe to call more than once.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		if p.pool != nil {
			p.pool.Close()
			logx.GetLogger().LogInfo(context.TODO(), "DB Connection Pool Successfully Closed!")
		}

		runClosers(p.closers)
	})
}

func runClosers(closers []func()) {
	for _, c := range closers {
		c()
	}
}
