package entity

import "time"

// Diabetes types the education table knows about. Other values are stored as given.
const (
	DiabetesType1           = "type1"
	DiabetesType2           = "type2"
	DiabetesTypeGestational = "gestational"
	DiabetesTypePrediabetes = "prediabetes"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	DiabetesType *string   `json:"diabetes_type"`
	HeightCm     *float64  `json:"height_cm"`
	WeightKg     *float64  `json:"weight_kg"`
	CreatedAt    time.Time `json:"created_at"`

	passwordDigest string
}

// SetPasswordDigest stores an already hashed password. The digest is never serialized.
func (u *User) SetPasswordDigest(digest string) {
	u.passwordDigest = digest
}

// PasswordDigest is for the persistence and credential layers only.
func (u *User) PasswordDigest() string {
	return u.passwordDigest
}

/*
MySQL table:

CREATE TABLE users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	email VARCHAR(120) NOT NULL UNIQUE,
	password_hash VARCHAR(128) NOT NULL,
	diabetes_type VARCHAR(30) NULL,
	height_cm DOUBLE NULL,
	weight_kg DOUBLE NULL,
	created_at DATETIME(6) NOT NULL
);
*/
