package domain

import "time"

type User struct {
	Id             int64      `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	HashedPassword string     `db:"hashed_password" json:"-"`
	IsActive       Flag       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type WsConnection struct {
	Id             int64      `db:"id" json:"id"`
	ConnectionId   string     `db:"connection_id" json:"connection_id"`
	UserId         int64      `db:"user_id" json:"user_id"`
	IsActive       Flag       `db:"is_active" json:"is_active"`
	ConnectedAt    time.Time  `db:"connected_at" json:"connected_at"`
	DisconnectedAt *time.Time `db:"disconnected_at" json:"disconnected_at,omitempty"`
}
