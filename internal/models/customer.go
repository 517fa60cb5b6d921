package models

import "time"

// Customer is an external person tickets belong to.
type Customer struct {
	ID         int64     `json:"id" db:"id"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Email      string    `json:"email" db:"email"`
	Status     string    `json:"status" db:"status"`
	CreateTime time.Time `json:"create_time" db:"create_time"`
	ChangeTime time.Time `json:"change_time" db:"change_time"`
}

// FullName joins the customer name parts for display.
func (c *Customer) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// User is an internal agent account. Mail from a user address is treated as
// an agent reply, not a customer follow-up.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	Role     string `json:"role" db:"role"`
	IsActive bool   `json:"is_active" db:"is_active"`
}
