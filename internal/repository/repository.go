// Package repository persists the domain model in MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key violation")
)

const mysqlDuplicateEntry = 1062

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// TxManager runs a unit of work inside one transaction. The transaction is
// rolled back on any error or panic and committed only when fn succeeds.
type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

func (tm *TxManager) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := tm.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrDuplicate, myErr.Message)
	}
	return err
}

func getOne(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return translate(sqlx.GetContext(ctx, q, dest, query, args...))
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return translate(sqlx.SelectContext(ctx, q, dest, query, args...))
}

func exec(ctx context.Context, e sqlx.ExecerContext, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func exists(ctx context.Context, q sqlx.QueryerContext, table string, where sq.Eq) (bool, error) {
	var n int
	if err := getOne(ctx, q, &n, builder.Select("COUNT(*)").From(table).Where(where)); err != nil {
		return false, err
	}
	return n > 0, nil
}
