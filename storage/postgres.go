// storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options bounds the connection pool.
type Options struct {
	MaxConns         int
	IdleTimeout      time.Duration
	AcquireTimeout   time.Duration
	StatementTimeout time.Duration
	AcquireRetries   int
}

// Postgres is the gorm-backed Gateway.
type Postgres struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	opts   Options
	logger *log.Logger
}

var _ Gateway = (*Postgres)(nil)

// Open connects to Postgres, configures the pool and pings once.
// The caller owns the returned gateway and must Close it at shutdown.
func Open(ctx context.Context, dsn string, opts Options, logger *log.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(gormWriter{logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, Classify("open", err)
	}
	return newPostgres(ctx, db, opts, logger)
}

func newPostgres(ctx context.Context, db *gorm.DB, opts Options, logger *log.Logger) (*Postgres, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, Classify("open", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxConns)
	sqlDB.SetMaxIdleConns(opts.MaxConns)
	sqlDB.SetConnMaxIdleTime(opts.IdleTimeout)

	p := &Postgres{db: db, sqlDB: sqlDB, opts: opts, logger: logger}
	if err := p.Ping(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	logger.Info("connected to postgres", "max_conns", opts.MaxConns, "idle_timeout", opts.IdleTimeout)
	return p, nil
}

// AutoMigrate creates or extends the tables behind the given models.
func (p *Postgres) AutoMigrate(ctx context.Context, models ...any) error {
	if err := p.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return Classify("migrate", err)
	}
	return nil
}

func (p *Postgres) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	var affected int64
	err := p.withConn(ctx, "exec", func(conn *gorm.DB) error {
		var err error
		affected, err = execOn(conn, statement, args)
		return err
	})
	return affected, err
}

func (p *Postgres) Select(ctx context.Context, dest any, statement string, args ...any) error {
	return p.withConn(ctx, "select", func(conn *gorm.DB) error {
		return selectOn(conn, dest, statement, args)
	})
}

func (p *Postgres) WithTransaction(ctx context.Context, fn func(tx Handle) error) error {
	return p.withConn(ctx, "transaction", func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			return fn(txHandle{tx: tx})
		})
	})
}

func (p *Postgres) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()
	if err := p.sqlDB.PingContext(pingCtx); err != nil {
		return &PersistenceError{Kind: Unavailable, Op: "ping", Err: err}
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.sqlDB.Close()
}

// withConn pins one pooled connection for fn. Acquisition waits at most
// AcquireTimeout per attempt and is retried with backoff; once fn has
// started nothing is retried, because a statement may have applied.
func (p *Postgres) withConn(ctx context.Context, op string, fn func(conn *gorm.DB) error) error {
	err := retryAcquire(ctx, p.opts.AcquireRetries, func() (bool, error) {
		acquireCtx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()

		started := false
		err := p.db.WithContext(acquireCtx).Connection(func(conn *gorm.DB) error {
			started = true
			return fn(conn.WithContext(ctx))
		})
		return started, err
	})
	if err == nil {
		return nil
	}
	if isAcquireError(err) {
		p.logger.Warn("connection acquisition failed", "op", op, "err", err)
		return &PersistenceError{Kind: Unavailable, Op: op, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return &PersistenceError{Kind: Unavailable, Op: op, Err: err}
	}
	return Classify(op, err)
}

// retryAcquire runs attempt until it succeeds, fails after starting work,
// or fails with something other than a connection error.
func retryAcquire(ctx context.Context, retries int, attempt func() (started bool, err error)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		started, err := attempt()
		if err == nil {
			return struct{}{}, nil
		}
		if started || !isConnectionError(err) {
			return struct{}{}, backoff.Permanent(acquireFailure{err: err, started: started})
		}
		return struct{}{}, acquireFailure{err: err}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(retries)+1))

	var af acquireFailure
	if errors.As(err, &af) {
		return af.unwrapped()
	}
	return err
}

// acquireFailure remembers whether the failed attempt ever reached fn.
type acquireFailure struct {
	err     error
	started bool
}

func (a acquireFailure) Error() string { return a.err.Error() }
func (a acquireFailure) Unwrap() error { return a.err }

func (a acquireFailure) unwrapped() error {
	if a.started {
		return a.err
	}
	return errAcquire{a.err}
}

type errAcquire struct{ err error }

func (e errAcquire) Error() string { return fmt.Sprintf("acquire connection: %v", e.err) }
func (e errAcquire) Unwrap() error { return e.err }

func isAcquireError(err error) bool {
	var ea errAcquire
	return errors.As(err, &ea)
}

type txHandle struct {
	tx *gorm.DB
}

func (h txHandle) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	n, err := execOn(h.tx.WithContext(ctx), statement, args)
	return n, Classify("exec", err)
}

func (h txHandle) Select(ctx context.Context, dest any, statement string, args ...any) error {
	return Classify("select", selectOn(h.tx.WithContext(ctx), dest, statement, args))
}

func execOn(db *gorm.DB, statement string, args []any) (int64, error) {
	res := db.Exec(statement, args...)
	return res.RowsAffected, res.Error
}

func selectOn(db *gorm.DB, dest any, statement string, args []any) error {
	return db.Raw(statement, args...).Scan(dest).Error
}

type gormWriter struct {
	logger *log.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logger.Warnf(format, args...)
}
