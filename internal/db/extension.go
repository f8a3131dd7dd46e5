package db

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// EnsureVectorExtension tries to enable pgvector on a separate connection.
// It never fails: the extension may already have been enabled by an
// operator with the required privileges.
func EnsureVectorExtension(ctx context.Context, dsn string) bool {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Warn().Err(err).Msg("Could not enable vector extension automatically")
		return false
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Warn().Err(err).Msg("Could not enable vector extension automatically; make sure 'vector' is enabled in the database")
		return false
	}
	log.Info().Msg("Extension 'vector' confirmed")
	return true
}
