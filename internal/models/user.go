package models

import (
	"time"

	"github.com/gogotex/todo-api/internal/document"
)

// User is the profile document. Its id is the id of the credential created with it.
type User struct {
	document.Base `bson:",inline"`
	Name          string `bson:"name" json:"name"`
	Email         string `bson:"email" json:"email"`
}

// Credential is a locally managed login. It is never rendered to clients.
type Credential struct {
	document.Base    `bson:",inline"`
	Email            string     `bson:"email" json:"email"`
	DisplayName      string     `bson:"displayName" json:"displayName"`
	PasswordHash     string     `bson:"passwordHash" json:"-"`
	Disabled         bool       `bson:"disabled" json:"disabled"`
	TokensValidAfter *time.Time `bson:"tokensValidAfter" json:"-"`
}
