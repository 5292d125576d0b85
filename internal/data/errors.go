package data

import (
	"errors"
	"fmt"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/domain/model"
)

// Shared sentinel errors for data-layer repositories.
var (
	ErrPostNotFound       = fmt.Errorf("post %w", model.ErrNotFound)
	ErrCommentNotFound    = fmt.Errorf("comment %w", model.ErrNotFound)
	ErrNativeUserNotFound = domainauth.ErrNoSuchUser
	ErrLoginExists        = errors.New("login already exists")
)
