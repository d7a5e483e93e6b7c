package models

import (
	"strings"
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Roles        string    `gorm:"not null"                 json:"-"`
	UUID         string    `gorm:"not null"                 json:"uuid"`
	TOTPEnabled  bool      `gorm:"default:false"            json:"is_totp_enabled"`
	Active       bool      `gorm:"default:true"             json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleList splits the comma-joined roles column.
func (u *User) RoleList() []string {
	if u.Roles == "" {
		return []string{}
	}
	return strings.Split(u.Roles, ",")
}

// UserView is what handlers return: no password hash, roles as a list.
type UserView struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	UUID      string    `json:"uuid"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Roles:     u.RoleList(),
		UUID:      u.UUID,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// BlockedToken is an append-only row keyed by the access token id (jti).
type BlockedToken struct {
	ID  uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	JTI string `gorm:"unique;not null"          json:"jti"`
}

type Post struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"not null"                 json:"title"`
	Description string    `gorm:"not null"                 json:"description"`
	Author      string    `gorm:"index"                    json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}
