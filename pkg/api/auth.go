package api

import "time"

// SignupRequest представляет запрос на регистрацию нового пользователя
type SignupRequest struct {
	Login    string `json:"login" validate:"required,login"`           // уникальный login
	Email    string `json:"email" validate:"required,email,max=50"`    // уникальный email
	Password string `json:"password" validate:"required,min=4,max=24"` // пароль в открытом виде
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=20"`
	Password string `json:"password" validate:"required,max=24"`
}

// User is the public view of a user
type User struct {
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	UUID             string    `json:"uuid"`
	Login            string    `json:"login"`
	Email            string    `json:"email"`
	IsEmailConfirmed bool      `json:"isEmailConfirmed"`
}

// AuthResponse is returned by signup and login. The refresh token travels
// only in the httpOnly cookie.
type AuthResponse struct {
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	User            User      `json:"user"`
	AccessToken     string    `json:"accessToken"`
}

// Me is the authenticated caller with roles
type Me struct {
	Roles []string `json:"roles"`
	User
}

// Session is one logged-in device
type Session struct {
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent"`
	IP        string    `json:"ip"`
}

// MessageResponse carries a plain confirmation message
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // код ошибки
	Message string `json:"message,omitempty"` // описание для пользователя
}
