package users

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

func ValidRole(r string) bool { return r == RoleUser || r == RoleAdmin }

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
