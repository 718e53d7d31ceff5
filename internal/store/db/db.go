package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-registration/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/lib/pq"
)

type DB struct {
	Bun *bun.DB
}

var itemColumns = []string{"paid", "checked_in", "vehicle_type", "phone_number", "metadata", "count"}

// OpenPostgres connects to postgres through lib/pq.
func OpenPostgres(dsn string) (*DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &DB{Bun: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// OpenSQLite opens a sqlite database, ":memory:" included, and creates the
// table since migrations only target postgres.
func OpenSQLite(ctx context.Context, dsn string) (*DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one connection keeps every query on the same in-memory database
	sqldb.SetMaxOpenConns(1)

	d := &DB{Bun: bun.NewDB(sqldb, sqlitedialect.New())}
	if err := d.CreateSchema(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) CreateSchema(ctx context.Context) error {
	_, err := d.Bun.NewCreateTable().
		Model((*models.Item)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create events_register table: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.Bun.Close()
}

func (d *DB) Get(ctx context.Context, partition, sort string) (*models.Item, error) {
	var item models.Item
	err := d.Bun.NewSelect().
		Model(&item).
		Where("event_name = ?", partition).
		Where("email = ?", sort).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", partition, sort, err)
	}
	return &item, nil
}

func (d *DB) Put(ctx context.Context, item models.Item) error {
	q := d.Bun.NewInsert().
		Model(&item).
		On("CONFLICT (event_name, email) DO UPDATE")
	for _, col := range itemColumns {
		q = q.Set(fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", item.EventName, item.SortKey, err)
	}
	return nil
}

func (d *DB) Update(ctx context.Context, item models.Item) error {
	res, err := d.Bun.NewUpdate().
		Model(&item).
		Column(itemColumns...).
		Where("event_name = ?", item.EventName).
		Where("email = ?", item.SortKey).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", item.EventName, item.SortKey, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return d.Put(ctx, item)
	}
	return nil
}

func (d *DB) Scan(ctx context.Context, partition string) ([]models.Item, error) {
	var items []models.Item
	err := d.Bun.NewSelect().
		Model(&items).
		Where("event_name = ?", partition).
		Order("email").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", partition, err)
	}
	return items, nil
}
