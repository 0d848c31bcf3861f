package users

import "time"

// User is an account that earns points. ID is the ledger user id.
type User struct {
	ID          string
	TelegramID  int64
	Username    string
	FirstName   string
	LastName    string
	TotalPoints int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName prefers the first name, then the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	}
	return "usuário"
}

type Telegram struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}
