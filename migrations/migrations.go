// Package migrations creates the schema. Every statement is idempotent.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var retryDelay = time.Second

// Execer is satisfied by *sql.DB and *sqlx.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type migration struct {
	name  string
	query string
}

// Tables are listed parents first so the foreign keys resolve.
var schema = []migration{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(120) NOT NULL UNIQUE,
			password_hash VARCHAR(128) NOT NULL,
			diabetes_type VARCHAR(30) NULL,
			height_cm DOUBLE NULL,
			weight_kg DOUBLE NULL,
			created_at DATETIME(6) NOT NULL
		);
	`},
	{"readings", `
		CREATE TABLE IF NOT EXISTS readings (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			value DOUBLE NOT NULL,
			date DATE NOT NULL,
			time TIME NOT NULL,
			notes TEXT NULL,
			context VARCHAR(20) NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX readings_user_date_idx (user_id, date, time),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
	`},
	{"medications", `
		CREATE TABLE IF NOT EXISTS medications (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			name VARCHAR(100) NOT NULL,
			dose VARCHAR(50) NOT NULL,
			time TIME NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at DATETIME(6) NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
	`},
	{"meals", `
		CREATE TABLE IF NOT EXISTS meals (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			meal_type VARCHAR(20) NULL,
			description TEXT NULL,
			created_at DATETIME(6) NOT NULL
		);
	`},
	{"reading_meals", `
		CREATE TABLE IF NOT EXISTS reading_meals (
			reading_id BIGINT NOT NULL,
			meal_id BIGINT NOT NULL,
			carbs_amount DOUBLE NULL,
			created_at DATETIME(6) NOT NULL,
			PRIMARY KEY (reading_id, meal_id),
			FOREIGN KEY (reading_id) REFERENCES readings(id) ON DELETE CASCADE,
			FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
		);
	`},
}

// AutoMigrate creates every table that does not exist yet, retrying each
// statement up to retries more times before giving up.
func AutoMigrate(ctx context.Context, db Execer, retries int) error {
	for _, m := range schema {
		_, err := db.ExecContext(ctx, m.query)
		for i := 0; err != nil && i < retries; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			_, err = db.ExecContext(ctx, m.query)
		}
		if err != nil {
			return fmt.Errorf("migrate %s table: %w", m.name, err)
		}
	}
	return nil
}
