package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/crypto/bcrypt"

	"github.com/fjod/traced_shop/auth-service/internal/domain"
	"github.com/fjod/traced_shop/pkg/filestore"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserRepository interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// FileUserRepository checks credentials against a JSON file of bcrypt
// hashes. The file is read once; users are not managed at runtime.
type FileUserRepository struct {
	byName map[string]*domain.User
	// compared against when the username is unknown so both paths cost a hash
	dummyHash []byte
}

func NewFileUserRepository(path string) (*FileUserRepository, error) {
	var users []*domain.User
	err := filestore.ReadJSON(path, &users)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		users, err = seedUsers()
		if err != nil {
			return nil, err
		}
		if err := filestore.WriteJSON(path, users); err != nil {
			return nil, fmt.Errorf("seed users: %w", err)
		}
	case err != nil:
		return nil, err
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	r := &FileUserRepository{byName: make(map[string]*domain.User, len(users)), dummyHash: dummy}
	for _, u := range users {
		r.byName[u.Username] = u
	}
	return r, nil
}

func seedUsers() ([]*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return []*domain.User{{ID: "1", Username: "admin", PasswordHash: string(hash)}}, nil
}

func (r *FileUserRepository) Authenticate(_ context.Context, username, password string) (*domain.User, error) {
	u, ok := r.byName[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(r.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	cp := *u
	return &cp, nil
}
