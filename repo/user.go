package repo

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillsenselab/gatekit/errors"
)

// User roles. The role travels as a token claim and gates the admin
// routes.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a stored account. The password hash never serializes.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Created      time.Time `json:"created"`
	PasswordHash []byte    `json:"-"`
}

// ListUsersFilter narrows and pages a user listing.
type ListUsersFilter struct {
	CreatedRangeStart *time.Time
	CreatedRangeEnd   *time.Time
	Email             string
	Search            string
	Limit             int
	Offset            int
}

// CreateUserRequest holds the fields for a new account. Password may be
// empty for accounts that cannot sign in directly.
type CreateUserRequest struct {
	Email    string
	Password string
	Name     string
}

// UserRepo is an in-memory user store seeded with demo accounts.
type UserRepo struct {
	mu    sync.RWMutex
	users []User
}

// Well-known seed account IDs.
const (
	SeedJohnDoeID      = "4ab28100-f56d-450d-92be-5f9fec656ccd"
	SeedJaneSmithID    = "a648ea31-d8b8-4311-a638-23e57efdd538"
	SeedAliceJohnsonID = "c823a11b-a788-4c69-a467-0c42da7ce80d"
)

// SeedJaneSmithPassword is the only seed account password; the other two
// accounts cannot sign in. Jane is also the seeded admin.
const SeedJaneSmithPassword = "5678"

// NewUserRepo creates a repo seeded with the three demo users.
func NewUserRepo() (*UserRepo, error) {
	janeHash, err := bcrypt.GenerateFromPassword([]byte(SeedJaneSmithPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal(err)
	}

	now := time.Now()
	return &UserRepo{
		users: []User{
			{
				ID:      SeedJohnDoeID,
				Email:   "johndoe@example.com",
				Name:    "John Doe",
				Role:    RoleUser,
				Created: now,
			},
			{
				ID:           SeedJaneSmithID,
				Email:        "janesmith@example.com",
				Name:         "Jane Smith",
				Role:         RoleAdmin,
				Created:      now,
				PasswordHash: janeHash,
			},
			{
				ID:      SeedAliceJohnsonID,
				Email:   "alicejohnson@test.test",
				Name:    "Alice Johnson",
				Role:    RoleUser,
				Created: now,
			},
		},
	}, nil
}

// Get returns the user with the given ID, or nil.
func (r *UserRepo) Get(id string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.users {
		if r.users[i].ID == id {
			u := r.users[i]
			return &u
		}
	}
	return nil
}

// List returns one page of users matching the filter, in creation order.
func (r *UserRepo) List(filter ListUsersFilter) Paged[User] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if filter.CreatedRangeStart != nil && u.Created.Before(*filter.CreatedRangeStart) {
			continue
		}
		if filter.CreatedRangeEnd != nil && u.Created.After(*filter.CreatedRangeEnd) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Email != "" && !strings.EqualFold(u.Email, filter.Email) {
			continue
		}
		matched = append(matched, u)
	}

	return page(matched, filter.Limit, filter.Offset)
}

// Create adds a user. The password, when present, is stored as a bcrypt
// hash. A duplicate email fails with ErrCodeAlreadyExists.
func (r *UserRepo) Create(req CreateUserRequest) (*User, error) {
	var hash []byte
	if req.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.Internal(err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Accounts without an email (admin-created) never collide.
	if req.Email != "" {
		for i := range r.users {
			if r.users[i].Email == req.Email {
				return nil, errors.AlreadyExists("user")
			}
		}
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         RoleUser,
		Created:      time.Now(),
		PasswordHash: hash,
	}
	r.users = append(r.users, user)

	out := user
	return &out, nil
}

// SignIn returns the user when the email and password match, nil
// otherwise. Accounts without a password can never sign in.
func (r *UserRepo) SignIn(email, password string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.users {
		u := r.users[i]
		if u.Email != email || len(u.PasswordHash) == 0 {
			continue
		}
		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil {
			out := u
			return &out
		}
	}
	return nil
}

// Count returns the number of stored users.
func (r *UserRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
