package models

import "time"

// User is the minimal account record the billing core knows about. Webhook
// processing may create a user when a purchase arrives for an unknown email,
// but never mutates an existing user's profile fields.
type User struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email     string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex:unique_user_email" json:"email"`
	Name      *string   `gorm:"column:name;type:varchar(255)" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "app_user" }
