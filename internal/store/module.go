package store

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

// Module provides the database handle and the Store.
var Module = fx.Module("store",
	fx.Provide(
		NewDB,
		NewStore,
	),
)

// DBParams holds dependencies for NewDB.
type DBParams struct {
	fx.In
	Cfg    *config.Config
	LC     fx.Lifecycle
	Logger *zap.Logger
}

// NewDB opens and migrates the database, closing it on stop.
func NewDB(params DBParams) (*gorm.DB, error) {
	db, err := Open(params.Cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	params.Logger.Info("Database ready", zap.String("path", params.Cfg.Database.Path))

	params.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

// StoreParams holds dependencies for NewStore.
type StoreParams struct {
	fx.In
	DB     *gorm.DB
	Cfg    *config.Config
	Logger *zap.Logger
	Clock  clockwork.Clock
}

// NewStore builds the Store with image defaults from config.
func NewStore(params StoreParams) (*Store, error) {
	return New(params.DB, params.Logger, params.Clock, UserSettings{
		Model:       params.Cfg.Images.Model,
		Quality:     params.Cfg.Images.Quality,
		AspectRatio: params.Cfg.Images.AspectRatio,
		Style:       "none",
	})
}
