// Package user defines the user entity shared by the storage and auth layers.
package user

import "time"

type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	BucketFolder string
	PasswordHash string
	CreatedAt    time.Time
}
