package pgxdb

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
)

const defaultPostgresPort = 5432

// configureAuth installs the hooks required by the configured AuthMode on poolConfig.
// The returned funcs release the resources allocated for it and must run after the pool is closed.
func configureAuth(ctx context.Context, poolConfig *pgxpool.Config, dbConf dbx.ConnConfig) ([]func(), error) {
	switch dbConf.EffectiveAuthMode() {
	case dbx.AuthPassword:
		return nil, nil
	case dbx.AuthCloudSQLIAM:
		return configureCloudSQLIAM(ctx, poolConfig, dbConf)
	case dbx.AuthAwsIAM:
		return nil, configureAwsIAM(ctx, poolConfig, dbConf)
	default:
		return nil, errorx.NewDatabaseError("unsupported auth mode '%s'", dbConf.AuthMode)
	}
}

// configureCloudSQLIAM dials through the Cloud SQL connector with IAM database authentication.
// Host is the instance connection name (project:region:instance).
func configureCloudSQLIAM(ctx context.Context, poolConfig *pgxpool.Config, dbConf dbx.ConnConfig) ([]func(), error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "failed to create Cloud SQL dialer")
	}

	instance := dbConf.Host
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, instance)
	}

	logx.GetLogger().LogInfo(ctx, fmt.Sprintf("Connecting to DB through Cloud SQL connector, instance %s", instance))

	return []func(){func() { _ = dialer.Close() }}, nil
}

// configureAwsIAM sets a fresh RDS IAM token as password before every new physical connection.
func configureAwsIAM(ctx context.Context, poolConfig *pgxpool.Config, dbConf dbx.ConnConfig) error {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(dbConf.AwsRegion))
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "failed to load AWS config")
	}

	port := dbConf.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	endpoint := fmt.Sprintf("%s:%d", dbConf.Host, port)
	poolConfig.BeforeConnect = rdsTokenHook(endpoint, dbConf.AwsRegion, dbConf.User, awsCfg.Credentials)

	logx.GetLogger().LogInfo(ctx, fmt.Sprintf("Connecting to DB with AWS IAM authentication, endpoint %s", endpoint))

	return nil
}

func rdsTokenHook(endpoint, region, user string, creds aws.CredentialsProvider) func(context.Context, *pgx.ConnConfig) error {
	return func(ctx context.Context, cc *pgx.ConnConfig) error {
		token, err := auth.BuildAuthToken(ctx, endpoint, region, user, creds)
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "failed to build RDS auth token")
		}

		cc.Password = token

		return nil
	}
}
