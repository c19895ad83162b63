package siwn

import (
	"github.com/goliatone/go-persistence-bun"
)

// RegisterModels registers every model with the persistence client so
// migrations and fixtures can see them. Call once before persistence.New.
func RegisterModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*NearAccount)(nil))
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*VerificationChallenge)(nil))
}
