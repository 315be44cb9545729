// components/account/users.go
//
// MySQL-backed sign-in accounts.
//
// Context
//   Accounts are created by the operator CLI (`ingenius user add`) and
//   checked by POST /login.  Emails are stored trimmed and lower-cased;
//   passwords only as bcrypt hashes.
//
// Notes
//   •  An unknown email still runs one bcrypt comparison against a dummy
//      hash, so response time does not reveal which emails exist.
//   •  MySQL error 1062 on insert maps to ErrEmailTaken.
//
//------------------------------------------------------------------------------

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanizio/ingenius/internal/auth"
)

// MinPasswordLength applies to accounts created through Add.
const MinPasswordLength = 12

var (
	ErrBadCredentials   = errors.New("account: incorrect email or password")
	ErrEmailTaken       = errors.New("account: email already registered")
	ErrPasswordTooShort = fmt.Errorf("account: password must be at least %d characters", MinPasswordLength)
)

// Schema creates the users table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	  id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  email         VARCHAR(254)    NOT NULL,
	  password_hash VARCHAR(72)     NOT NULL,
	  created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

const (
	selectUserSQL = `SELECT id, email, password_hash FROM users WHERE email = ? LIMIT 1`
	insertUserSQL = `INSERT INTO users (email, password_hash) VALUES (?, ?)`
)

// dummyHash keeps the miss path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ingenius-timing-pad"), bcrypt.DefaultCost)

// Users reads and writes the users table.
type Users struct {
	db   *sqlx.DB
	cost int
}

// NewUsers returns a Users backed by db.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db, cost: bcrypt.DefaultCost}
}

type userRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

// Authenticate returns the user for email when password matches its hash.
func (u *Users) Authenticate(ctx context.Context, email, password string) (auth.User, error) {
	var row userRow
	err := u.db.GetContext(ctx, &row, selectUserSQL, normalizeEmail(email))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return auth.User{}, ErrBadCredentials
	case err != nil:
		return auth.User{}, fmt.Errorf("account: lookup: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return auth.User{}, ErrBadCredentials
	}
	return auth.User{ID: row.ID, Email: row.Email}, nil
}

// Add creates a user and returns its id.
func (u *Users) Add(ctx context.Context, email, password string) (int64, error) {
	if len(password) < MinPasswordLength {
		return 0, ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return 0, fmt.Errorf("account: hash: %w", err)
	}
	res, err := u.db.ExecContext(ctx, insertUserSQL, normalizeEmail(email), string(hash))
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("account: insert: %w", err)
	}
	return res.LastInsertId()
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
