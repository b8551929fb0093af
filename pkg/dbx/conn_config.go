package dbx

// AuthMode selects how the backend authenticates a new physical connection.
type AuthMode string

const (
	// AuthPassword - static user/password authentication (default).
	AuthPassword AuthMode = "password"
	// AuthCloudSQLIAM - Google Cloud SQL connector with IAM database authentication.
	AuthCloudSQLIAM AuthMode = "cloudsql-iam"
	// AuthAwsIAM - AWS RDS IAM token used as password, refreshed for every new connection.
	AuthAwsIAM AuthMode = "aws-iam"
)

// ConnConfig represents the configuration required for database connection.
//
// When neither IsLocalEnv nor VpcDirectConnection is set, Host is the Cloud SQL
// instance connection name and the connection goes through the mounted unix socket
// (/cloudsql/<Host>), unless AuthMode is AuthCloudSQLIAM.
type ConnConfig struct {
	VpcDirectConnection bool     `mapstructure:"vpcDirectConnection"`
	Host                string   `mapstructure:"host" validate:"required"`
	Port                int32    `mapstructure:"port" validate:"gte=0,lte=65535"`
	DBName              string   `mapstructure:"name" validate:"required"`
	User                string   `mapstructure:"user" validate:"required"`
	Password            string   `mapstructure:"password" validate:"required_if=AuthMode password"`
	MaxConn             int32    `mapstructure:"maxConn" validate:"gte=0"`
	IsLocalEnv          bool     `mapstructure:"isLocalEnv"`
	AuthMode            AuthMode `mapstructure:"authMode" validate:"omitempty,oneof=password cloudsql-iam aws-iam"`
	AwsRegion           string   `mapstructure:"awsRegion" validate:"required_if=AuthMode aws-iam"`
}

// EffectiveAuthMode returns the configured AuthMode, defaulting to AuthPassword.
func (c ConnConfig) EffectiveAuthMode() AuthMode {
	if c.AuthMode == "" {
		return AuthPassword
	}

	return c.AuthMode
}
