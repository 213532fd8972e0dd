package entity

import "time"

const (
	ContextPreMeal  = "pre_meal"
	ContextPostMeal = "post_meal"

	MinGlucose = 40.0
	MaxGlucose = 500.0
)

// Reading is a single blood glucose measurement owned by one user.
type Reading struct {
	ID        int64     `json:"id" db:"id"`
	Value     float64   `json:"value" db:"value"`
	Date      Date      `json:"date" db:"date"`
	Time      ClockTime `json:"time" db:"time"`
	Notes     *string   `json:"notes" db:"notes"`
	Context   *string   `json:"context" db:"context"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UserID    int64     `json:"user_id" db:"user_id"`
}

// ValidContext reports whether c is one of the recognised meal contexts.
func ValidContext(c string) bool {
	return c == ContextPreMeal || c == ContextPostMeal
}

// ReadingMeal links a reading to a meal with the carbohydrates the user reported.
type ReadingMeal struct {
	ReadingID   int64     `json:"reading_id" db:"reading_id"`
	MealID      int64     `json:"meal_id" db:"meal_id"`
	CarbsAmount *float64  `json:"carbs_amount" db:"carbs_amount"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

/*
MySQL tables:

CREATE TABLE readings (
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

CREATE TABLE reading_meals (
	reading_id BIGINT NOT NULL,
	meal_id BIGINT NOT NULL,
	carbs_amount DOUBLE NULL,
	created_at DATETIME(6) NOT NULL,
	PRIMARY KEY (reading_id, meal_id),
	FOREIGN KEY (reading_id) REFERENCES readings(id) ON DELETE CASCADE,
	FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
);
*/
