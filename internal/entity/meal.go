package entity

import "time"

// Meal is shared by all users; readings reference it through ReadingMeal.
type Meal struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	MealType    *string   `json:"meal_type" db:"meal_type"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

/*
MySQL table:

CREATE TABLE meals (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	meal_type VARCHAR(20) NULL,
	description TEXT NULL,
	created_at DATETIME(6) NOT NULL
);
*/
