package domain

import "time"

type User struct {
	ID        int64     `db:"id" json:"id"`
	LoginID   string    `db:"login_id" json:"loginId"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
