package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ID               string    `json:"uuid"`  // UUID пользователя
	Login            string    `json:"login"` // уникальный login
	Email            string    `json:"email"` // уникальный email
	PasswordHash     string    `json:"-"`     // bcrypt хеш пароля, наружу не отдается
	IsEmailConfirmed bool      `json:"is_email_confirmed"`
}

// Public returns the password-stripped view of the user.
func (u *User) Public() UserPublic {
	return UserPublic{
		UUID:             u.ID,
		Login:            u.Login,
		Email:            u.Email,
		IsEmailConfirmed: u.IsEmailConfirmed,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// UserPublic is the user representation that may leave the server.
// It is also the subject of access tokens.
type UserPublic struct {
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	UUID             string    `json:"uuid"`
	Login            string    `json:"login"`
	Email            string    `json:"email"`
	IsEmailConfirmed bool      `json:"isEmailConfirmed"`
}

// Identity is the request-scoped caller: public user data plus role names.
type Identity struct {
	Roles []string `json:"roles"`
	UserPublic
}

// HasRole reports whether the identity carries the role.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}
