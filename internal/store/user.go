package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/diabyte/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var active int
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Active = active != 0
	return &u, nil
}

const userCols = `id, email, name, password_hash, role, active, created_at, updated_at`

// Create stores a new user. The email is normalized to lower case; a
// duplicate email yields model.ErrConflict.
func (s *UserStore) Create(email, name, passwordHash string) (*model.User, error) {
	return s.insert(`INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?)`, email, name, passwordHash)
}

// Register stores a new user like Create, but the first account in the
// database is created as an admin. The role is decided inside the INSERT,
// so concurrent registrations promote at most one account.
func (s *UserStore) Register(email, name, passwordHash string) (*model.User, error) {
	return s.insert(
		`INSERT INTO users (email, name, password_hash, role)
		 SELECT ?, ?, ?, CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'user' ELSE 'admin' END`,
		email, name, passwordHash,
	)
}

func (s *UserStore) insert(query, email, name, passwordHash string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	result, err := s.db.Exec(query, email, name, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetRole(id int64, role string) (*model.User, error) {
	_, err := s.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) SetActive(id int64, active bool) (*model.User, error) {
	var a int
	if active {
		a = 1
	}
	_, err := s.db.Exec(`UPDATE users SET active = ? WHERE id = ?`, a, id)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
