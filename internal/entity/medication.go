package entity

import "time"

const (
	MedicationPending = "pending"
	MedicationTaken   = "taken"
	MedicationMissed  = "missed"
)

type Medication struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Dose      string    `json:"dose" db:"dose"`
	Time      ClockTime `json:"time" db:"time"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UserID    int64     `json:"user_id" db:"user_id"`
}

func ValidMedicationStatus(s string) bool {
	switch s {
	case MedicationPending, MedicationTaken, MedicationMissed:
		return true
	}
	return false
}

/*
MySQL table:

CREATE TABLE medications (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	name VARCHAR(100) NOT NULL,
	dose VARCHAR(50) NOT NULL,
	time TIME NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at DATETIME(6) NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
*/
