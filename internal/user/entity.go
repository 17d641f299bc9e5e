// Package user defines the account entity and its repositories.
package user

import "time"

// User is a registered account. Password holds the bcrypt hash and is
// never serialized to clients.
type User struct {
	ID        string    `json:"id" bson:"id"`
	Username  string    `json:"username" bson:"username"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"password" bson:"password"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Public is the client-visible view of an account used in roster
// events: identity plus live presence, nothing else.
type Public struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

// Public strips credentials from a User.
func (u *User) Public(online bool) Public {
	return Public{ID: u.ID, Username: u.Username, IsOnline: online}
}
