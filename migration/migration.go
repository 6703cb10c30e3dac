package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/scylladb/gocqlx/v2"
	cqlmigrate "github.com/scylladb/gocqlx/v2/migrate"
)

//go:embed mysql/*.sql
var mysqlFS embed.FS

//go:embed scylla/*.cql
var scyllaFS embed.FS

// Migrate brings the database of ctx to the latest schema. Sqlite databases
// are only used locally and in tests, they are created from the entities.
func Migrate(ctx context.Context) error {
	cfg := xcontext.Configs(ctx).Database
	if cfg.Driver == "sqlite" {
		return entity.MigrateTable(xcontext.DB(ctx))
	}

	db, err := xcontext.DB(ctx).DB()
	if err != nil {
		return err
	}

	driver, err := mysql.WithInstance(db, &mysql.Config{DatabaseName: cfg.Database})
	if err != nil {
		return err
	}

	src, err := mysqlSource()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Database, driver)
	if err != nil {
		return err
	}
	m.Log = &migrateLogger{ctx: ctx}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	if dirty {
		return fmt.Errorf("database is dirty at version %d", version)
	}

	xcontext.Logger(ctx).Infof("Database is at version %d", version)
	return nil
}

func MigrateScyllaDB(ctx context.Context, session gocqlx.Session) error {
	files, err := fs.Sub(scyllaFS, "scylla")
	if err != nil {
		return err
	}

	return cqlmigrate.FromFS(ctx, session, files)
}

func mysqlSource() (source.Driver, error) {
	return iofs.New(mysqlFS, "mysql")
}

type migrateLogger struct {
	ctx context.Context
}

func (l *migrateLogger) Printf(format string, v ...any) {
	xcontext.Logger(l.ctx).Infof(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
