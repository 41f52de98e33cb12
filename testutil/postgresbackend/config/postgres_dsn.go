package config

import "os"

// DSNEnvVar is the environment variable holding the integration test DSN.
const DSNEnvVar = "UNITOFWORK_POSTGRES_DSN"

// PostgresTestDSN returns the DSN for the test database and whether it is configured.
func PostgresTestDSN() (string, bool) {
	dsn := os.Getenv(DSNEnvVar)

	return dsn, dsn != ""
}
