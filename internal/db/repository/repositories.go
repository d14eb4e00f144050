package repository

import (
	"github.com/cutroom/floor-service/internal/db"
)

// Repositories provides access to all repository instances
type Repositories struct {
	User     *UserRepository
	Token    *TokenRepository
	Operator *OperatorRepository
	Mattress *MattressRepository
}

// NewRepositories creates a new repositories container
func NewRepositories(database *db.Database) *Repositories {
	return &Repositories{
		User:     NewUserRepository(database.DB),
		Token:    NewTokenRepository(database.DB),
		Operator: NewOperatorRepository(database.DB),
		Mattress: NewMattressRepository(database.DB),
	}
}
