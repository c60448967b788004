package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"confectionery/pkg/domain/model"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Store is the relational entity store. It serves reads directly from the
// pool and writes through Execute, which scopes one transaction per call.
type Store struct {
	provider
	db *sqlx.DB
}

var (
	_ model.UnitOfWork         = (*Store)(nil)
	_ model.RepositoryProvider = (*Store)(nil)
)

func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn, err := normalizeDSN(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Driver)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err, "ping database")
	}

	return &Store{provider: provider{q: db}, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx), "ping database")
}

func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, provider model.RepositoryProvider) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.WithError(rbErr).Warn("failed to roll back transaction")
		}
	}()

	if err = fn(ctx, provider{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify(err, "commit transaction")
	}
	return nil
}

// provider hands out repositories bound to either the pool or a transaction.
type provider struct {
	q sqlx.ExtContext
}

func (p provider) OrderRepository() model.OrderRepository {
	return &orderRepository{q: p.q}
}

func (p provider) ProductRepository() model.ProductRepository {
	return &productRepository{q: p.q}
}

func (p provider) ClientRepository() model.ClientRepository {
	return &clientRepository{q: p.q}
}

func (p provider) CategoryRepository() model.CategoryRepository {
	return &categoryRepository{q: p.q}
}

func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "foreign_keys") {
			dsn = appendQuery(dsn, "_pragma=foreign_keys(1)")
		}
		if !strings.Contains(dsn, "busy_timeout") {
			dsn = appendQuery(dsn, "_pragma=busy_timeout(5000)")
		}
		return dsn, nil
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", errors.Wrap(err, "parse mysql dsn")
		}
		return cfg.FormatDSN(), nil
	case DriverPgx:
		return dsn, nil
	default:
		return "", errors.Errorf("unsupported database driver %q", driver)
	}
}

func appendQuery(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// insertReturningID runs an INSERT written with ? placeholders and returns the
// generated id. Postgres has no LastInsertId, so it gets a RETURNING clause.
func insertReturningID(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	if q.DriverName() == DriverPgx {
		var id int64
		err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
