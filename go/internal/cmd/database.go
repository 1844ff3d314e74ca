package main

import (
	"context"
	"database/sql"

	"github.com/mcdev12/planningpoker/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context) (*sql.DB, dbconfig.Config, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	db, err := dbconfig.Open(ctx, dbCfg)
	if err != nil {
		return nil, dbCfg, err
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return db, dbCfg, nil
}
