package pgxdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcodd23/go-micro-dbcmd/pkg/dbcmd"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-micro-dbcmd/test/testcontainer/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
The tables under test are created by test/testcontainer/postgres/init_schema.sql:

ORDERS   (ID, CUSTOMER, STATUS, TOTAL, PAYLOAD, CREATED_AT)
ACCOUNTS (ID, OWNER, BALANCE)

and the procedure APPLY_CREDIT(p_account_id, p_amount, INOUT p_balance, OUT p_touched).
*/

type Order struct {
	ID        int64          `db:"id,ignoreinsert,ignoreupdate"`
	Customer  string         `db:"customer"`
	Status    string         `db:"status"`
	Total     float64        `db:"total"`
	Payload   map[string]any `db:"payload"`
	CreatedAt time.Time      `db:"created_at,ignoreinsert,ignoreupdate"`
}

type Account struct {
	ID      int64  `db:"id"`
	Owner   string `db:"owner"`
	Balance int64  `db:"balance"`
}

const insertOrderSQL = "INSERT INTO ORDERS (CUSTOMER, STATUS, TOTAL, PAYLOAD) VALUES (@customer, @status, @total, @payload)"

// setupRepository starts a postgres container and returns a repository bound to it.
// The container is terminated when the test ends.
func setupRepository(ctx context.Context, t *testing.T, prepared ...dbx.PreparedStatement) (*dbcmd.Repository, *pgxdb.Provider) {
	container := postgres.StartPostgresContainer(ctx, t)
	t.Cleanup(func() { container.StopContainer(ctx, t) })

	provider := container.SetupProvider(ctx, t, prepared...)
	waitForDBReady(ctx, t, provider)

	repo, err := dbcmd.NewRepository(dbcmd.NewClientFactory(provider, dbcmd.WithRetryCount(2)))
	require.NoError(t, err)

	return repo, provider
}

// waitForDBReady waits for the database container to accept queries.
func waitForDBReady(ctx context.Context, t *testing.T, provider *pgxdb.Provider) {
	for retries := 0; retries < 20; retries++ {
		err := provider.Pool().Ping(ctx)
		if err == nil {
			return
		}
		t.Log(err)
		t.Log("Waiting for database to be ready...")
		time.Sleep(2 * time.Second)
	}

	t.Fatal("Database is not ready after waiting")
}

func countOrders(ctx context.Context, t *testing.T, repo *dbcmd.Repository, customer string) int64 {
	counts, err := dbcmd.ExecuteQuerySpec(ctx, repo, dbcmd.QuerySpec[int64]{
		Build: func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText("SELECT COUNT(*) FROM ORDERS WHERE CUSTOMER = @customer").
				AddNamedParameter("customer", customer)
		},
		Mapper: dbx.MapScalar[int64](),
	})
	require.NoError(t, err)
	require.Len(t, counts, 1)

	return counts[0]
}

func TestPostgresCommands(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	insertStmt := dbx.NewPreparedStatement(
		"insertOrder",
		"INSERT INTO ORDERS (CUSTOMER, STATUS, TOTAL) VALUES ($1, $2, $3)",
	)

	repo, provider := setupRepository(ctx, t, insertStmt)

	t.Run("TestInsertAndQuery", func(t *testing.T) {
		n, err := repo.ExecuteNonQuerySpec(ctx, func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText(insertOrderSQL).
				AddNamedParameters(Order{Customer: "ann", Status: "new", Total: 10.5}, dbx.CrudInsert).
				PushCommand().
				SetCommandText(insertOrderSQL).
				AddNamedParameters(Order{Customer: "ann", Status: "paid", Total: 4}, dbx.CrudInsert)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		orders, err := dbcmd.ExecuteQuerySpec(ctx, repo, dbcmd.QuerySpec[Order]{
			Build: func(client *dbcmd.Client) *dbcmd.Client {
				return client.
					SetCommandText("SELECT * FROM ORDERS WHERE CUSTOMER = @customer ORDER BY ID").
					AddNamedParameter("customer", "ann")
			},
			Mapper: dbx.MapByName[Order](),
		})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "new", orders[0].Status)
		assert.Equal(t, 10.5, orders[0].Total)
		assert.Equal(t, "paid", orders[1].Status)
		assert.False(t, orders[0].CreatedAt.IsZero())
	})

	t.Run("TestUpdateReturnsAffectedRows", func(t *testing.T) {
		n, err := repo.ExecuteNonQuerySpec(ctx, func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText("UPDATE ORDERS SET STATUS = @status WHERE CUSTOMER = @customer").
				AddNamedParameters(map[string]any{"status": "shipped", "customer": "ann"}, dbx.CrudUpdate)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("TestFailingCommandRollsBack", func(t *testing.T) {
		_, err := repo.ExecuteNonQuerySpec(ctx, func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText(insertOrderSQL).
				AddNamedParameters(Order{Customer: "bob", Status: "new"}, dbx.CrudInsert).
				PushCommand().
				SetCommandText(insertOrderSQL).
				AddNamedParameters(Order{Customer: "bob", Status: "lost"}, dbx.CrudInsert)
		})
		require.Error(t, err)
		assert.Equal(t, pgxdb.KindConstraint, pgxdb.ClassifyError(err))
		assert.False(t, provider.IsTransient(err))

		assert.Zero(t, countOrders(ctx, t, repo, "bob"), "the first insert is rolled back")
	})

	t.Run("TestStoredProcedureOutputs", func(t *testing.T) {
		_, err := repo.ExecuteNonQuerySpec(ctx, func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText("INSERT INTO ACCOUNTS (ID, OWNER, BALANCE) VALUES (@id, @owner, @balance)").
				AddNamedParameters(&Account{ID: 1, Owner: "ann", Balance: 100}, dbx.CrudInsert)
		})
		require.NoError(t, err)

		balance := dbx.NewInputOutputParameter("p_balance", int64(0), dbx.DbTypeInt64)
		touched := dbx.NewOutputParameter("p_touched", dbx.DbTypeInt32)

		err = repo.ExecuteDbAction(ctx, func(ctx context.Context, client *dbcmd.Client) error {
			_, err := client.
				SetCommandText("public.apply_credit").
				SetCommandType(dbx.CommandStoredProcedure).
				AddDbParameters(
					dbx.NewParameter("p_account_id", int64(1), dbx.DbTypeInt64),
					dbx.NewParameter("p_amount", int64(50), dbx.DbTypeInt64),
					balance,
					touched,
				).
				ExecuteNonQuery(ctx)
			return err
		})
		require.NoError(t, err)

		assert.Equal(t, int64(150), balance.Value)
		assert.Equal(t, int32(1), touched.Value)
	})

	t.Run("TestPreparedStatement", func(t *testing.T) {
		n, err := repo.ExecuteNonQuerySpec(ctx, func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText(insertStmt.GetName()).
				AddDbParameters(
					dbx.NewParameter("customer", "carl", dbx.DbTypeString),
					dbx.NewParameter("status", "new", dbx.DbTypeString),
					dbx.NewParameter("total", 12.25, dbx.DbTypeFloat64),
				)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		totals, err := dbcmd.ExecuteQuerySpec(ctx, repo, dbcmd.QuerySpec[float64]{
			Build: func(client *dbcmd.Client) *dbcmd.Client {
				return client.
					SetCommandText("SELECT TOTAL::float8 FROM ORDERS WHERE CUSTOMER = $1").
					AddDbParameter(dbx.NewParameter("customer", "carl", dbx.DbTypeString))
			},
			Mapper: dbx.MapScalar[float64](),
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{12.25}, totals)
	})

	t.Run("TestJSONPayload", func(t *testing.T) {
		_, err := repo.ExecuteNonQuerySpec(ctx, func(client *dbcmd.Client) *dbcmd.Client {
			return client.
				SetCommandText(insertOrderSQL).
				AddNamedParameter("customer", "dora").
				AddNamedParameter("status", "new").
				AddNamedParameter("total", 1).
				AddDbParameter(dbx.NewParameter("payload", map[string]any{"sku": "A-1", "qty": 2}, dbx.DbTypeJSON))
		})
		require.NoError(t, err)

		records, err := dbcmd.ExecuteDbActionWithResult(ctx, repo, func(ctx context.Context, client *dbcmd.Client) ([]dbx.Record, error) {
			return client.
				SetCommandText("SELECT PAYLOAD FROM ORDERS WHERE CUSTOMER = @customer").
				AddNamedParameter("customer", "dora").
				SetIsolationLevel(dbx.Serializable).
				ExecuteQuery(ctx)
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, map[string]any{"sku": "A-1", "qty": float64(2)}, records[0]["payload"])
	})

	t.Run("TestCommandTimeout", func(t *testing.T) {
		err := repo.ExecuteDbAction(ctx, func(ctx context.Context, client *dbcmd.Client) error {
			_, err := client.
				SetRetryCount(0).
				SetCommandText("SELECT pg_sleep(5)").
				SetCommandTimeout(100 * time.Millisecond).
				ExecuteNonQuery(ctx)
			return err
		})
		require.Error(t, err)
		assert.Equal(t, pgxdb.KindTimeout, pgxdb.ClassifyError(err))
	})
}
