package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// User represents a registered player in the database.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	GamesWon     int
	GamesLost    int
	CreatedAt    time.Time
}

// ErrUserNotFound is returned when a user lookup yields no results.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when attempting to create a duplicate username.
var ErrUserExists = errors.New("user already exists")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository provides user persistence operations.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a UserRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a bcrypt-hashed password.
//
// Precondition: username and password must be non-empty; email may be empty.
// Postcondition: Returns the created User with ID and CreatedAt set,
// or ErrUserExists if the username is taken.
func (r *UserRepository) Create(ctx context.Context, username, password, email string) (User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	var u User
	err = r.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, password_hash, email, games_won, games_lost, created_at`,
		username, hash, email,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.GamesWon, &u.GamesLost, &u.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("inserting user: %w", err)
	}

	return u, nil
}

// Authenticate verifies credentials and returns the matching user.
//
// Precondition: username and password must be non-empty.
// Postcondition: Returns the User if credentials are valid, or
// ErrInvalidCredentials. An unknown username and a wrong password are
// indistinguishable to the caller.
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !CheckPassword(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}

	return u, nil
}

// GetByUsername retrieves a user by username.
//
// Precondition: username must be non-empty.
// Postcondition: Returns the User or ErrUserNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash, email, games_won, games_lost, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.GamesWon, &u.GamesLost, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// UpdateStats increments the win or loss counter for the given user.
//
// Postcondition: The counter is incremented, or ErrUserNotFound is returned.
func (r *UserRepository) UpdateStats(ctx context.Context, username string, won bool) error {
	column := "games_lost"
	if won {
		column = "games_won"
	}

	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = %s + 1 WHERE username = $1`, column, column),
		username,
	)
	if err != nil {
		return fmt.Errorf("updating stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
