// Package directory is the user-directory collaborator: staff accounts
// with roles, credential checks, and the signed role claim handed to
// clients at login. The core itself never enforces authorization.
package directory

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"cafe-system/internal/domain"
	"cafe-system/internal/jsonfile"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type User struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"` // bcrypt hash, never serialized in responses
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// Safe strips the credential hash for list views and login responses.
func (u User) Safe() User {
	u.Password = ""
	return u
}

type Directory struct {
	mu    sync.RWMutex
	users []User
	path  string

	secret []byte
	ttl    time.Duration
	log    *zap.Logger
}

func Open(dir, secret string, ttl time.Duration, log *zap.Logger) (*Directory, error) {
	d := &Directory{
		path:   filepath.Join(dir, "users.json"),
		secret: []byte(secret),
		ttl:    ttl,
		log:    log,
	}
	found, err := jsonfile.Read(d.path, &d.users)
	if err != nil {
		return nil, err
	}
	if !found || len(d.users) == 0 {
		// first boot: seed the admin account so the system is reachable
		hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		d.users = []User{{Username: "admin", Password: string(hash), Role: "manager", Name: "Administrator"}}
		if err := jsonfile.Write(d.path, d.users); err != nil {
			return nil, err
		}
		log.Warn("user directory was empty, seeded default admin account")
	}
	return d, nil
}

// Login checks the credentials and returns the safe user plus a signed
// role claim the client presents to collaborators.
func (d *Directory) Login(username, password string) (User, string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
			return User{}, "", ErrInvalidCredentials
		}
		token, err := d.signClaim(u)
		if err != nil {
			return User{}, "", err
		}
		return u.Safe(), token, nil
	}
	return User{}, "", ErrInvalidCredentials
}

func (d *Directory) signClaim(u User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.Username,
		"role": u.Role,
		"name": u.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(d.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
}

// Users lists all accounts without credential hashes.
func (d *Directory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, len(d.users))
	for i, u := range d.users {
		out[i] = u.Safe()
	}
	return out
}

func (d *Directory) Add(username, password, role, name string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			return User{}, fmt.Errorf("%w: username %q already exists", domain.ErrValidation, username)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{Username: username, Password: string(hash), Role: role, Name: name}
	d.users = append(d.users, u)
	return u.Safe(), jsonfile.Write(d.path, d.users)
}

// Update patches the provided fields only.
func (d *Directory) Update(username string, password, role, name *string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.users {
		if d.users[i].Username != username {
			continue
		}
		if password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
			if err != nil {
				return User{}, err
			}
			d.users[i].Password = string(hash)
		}
		if role != nil {
			d.users[i].Role = *role
		}
		if name != nil {
			d.users[i].Name = *name
		}
		return d.users[i].Safe(), jsonfile.Write(d.path, d.users)
	}
	return User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, username)
}

// Delete removes an account. The admin account cannot be removed.
func (d *Directory) Delete(username string) error {
	if username == "admin" {
		return fmt.Errorf("%w: admin user cannot be deleted", domain.ErrValidation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.users {
		if d.users[i].Username == username {
			d.users = append(d.users[:i], d.users[i+1:]...)
			return jsonfile.Write(d.path, d.users)
		}
	}
	return fmt.Errorf("%w: user %s", domain.ErrNotFound, username)
}
