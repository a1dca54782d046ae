package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/entreepos/entree-web/internal/models"
)

var (
	ErrInvalidUser  = errors.New("invalid user")
	ErrUserNotFound = errors.New("user not found")
)

const (
	idPrefix   = "usr-"
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 10
)

// DefaultSeedSpecs returns the administrative users provisioned for a fresh
// install: root with userAdmin in the main and test realms.
func DefaultSeedSpecs(password string) []models.SeedSpec {
	specs := make([]models.SeedSpec, 0, 2)
	for _, realm := range []string{"entree", "entree_test"} {
		specs = append(specs, models.SeedSpec{
			Realm:    realm,
			Username: "root",
			Password: password,
			Roles:    []models.Role{{Name: "userAdmin", Realm: realm}},
		})
	}
	return specs
}

type Database struct {
	db         *sql.DB
	validRoles map[string]bool
	bcryptCost int
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{
		db: db,
		validRoles: map[string]bool{
			"read":      true,
			"readWrite": true,
			"dbAdmin":   true,
			"userAdmin": true,
		},
		bcryptCost: bcrypt.DefaultCost,
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS users(
	  id            TEXT    PRIMARY KEY,
	  realm         TEXT    NOT NULL,
	  username      TEXT    NOT NULL,
	  password_hash TEXT    NOT NULL,
	  created_at    INTEGER NOT NULL,
	  UNIQUE(realm, username)
	);
	CREATE TABLE IF NOT EXISTS user_roles(
	  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	  role    TEXT NOT NULL CHECK (role IN ('read','readWrite','dbAdmin','userAdmin')),
	  realm   TEXT NOT NULL,
	  PRIMARY KEY (user_id, role, realm)
	);
	CREATE INDEX IF NOT EXISTS idx_users_realm ON users(realm);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) ValidateSeedSpec(spec models.SeedSpec) error {
	if spec.Realm == "" {
		return fmt.Errorf("%w: realm cannot be empty", ErrInvalidUser)
	}
	if spec.Username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidUser)
	}
	if spec.Password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidUser)
	}
	if len(spec.Roles) == 0 {
		return fmt.Errorf("%w: at least one role is required", ErrInvalidUser)
	}
	for _, role := range spec.Roles {
		if !d.validRoles[role.Name] {
			return fmt.Errorf("%w: invalid role: %s", ErrInvalidUser, role.Name)
		}
		if role.Realm == "" {
			return fmt.Errorf("%w: role %s has no realm", ErrInvalidUser, role.Name)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DropUser removes username from realm. Dropping a missing user is not an error.
func (d *Database) DropUser(ctx context.Context, realm, username string) error {
	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := dropUser(ctx, transaction, realm, username); err != nil {
		_ = transaction.Rollback()
		return err
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func dropUser(ctx context.Context, ex execer, realm, username string) error {
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id IN (SELECT id FROM users WHERE realm = ? AND username = ?)`,
		realm, username); err != nil {
		return fmt.Errorf("failed to drop user roles: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM users WHERE realm = ? AND username = ?`, realm, username); err != nil {
		return fmt.Errorf("failed to drop user: %w", err)
	}
	return nil
}

func (d *Database) CreateUser(ctx context.Context, spec models.SeedSpec) (*models.User, error) {
	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	user, err := d.createUser(ctx, transaction, spec)
	if err != nil {
		_ = transaction.Rollback()
		return nil, err
	}
	if err := transaction.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// SeedUsers drops and recreates every spec in a single transaction, so running
// it again leaves the same set of users behind.
func (d *Database) SeedUsers(ctx context.Context, specs []models.SeedSpec) ([]*models.User, error) {
	for _, spec := range specs {
		if err := d.ValidateSeedSpec(spec); err != nil {
			return nil, err
		}
	}

	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	users := make([]*models.User, 0, len(specs))
	for _, spec := range specs {
		if err := dropUser(ctx, transaction, spec.Realm, spec.Username); err != nil {
			_ = transaction.Rollback()
			return nil, err
		}
		user, err := d.createUser(ctx, transaction, spec)
		if err != nil {
			_ = transaction.Rollback()
			return nil, err
		}
		users = append(users, user)
	}

	if err := transaction.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return users, nil
}

func (d *Database) createUser(ctx context.Context, transaction *sql.Tx, spec models.SeedSpec) (*models.User, error) {
	if err := d.ValidateSeedSpec(spec); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), d.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	id, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	user := &models.User{
		ID:           idPrefix + id,
		Realm:        spec.Realm,
		Username:     spec.Username,
		PasswordHash: string(hash),
		Roles:        append([]models.Role(nil), spec.Roles...),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if _, err := transaction.ExecContext(ctx,
		`INSERT INTO users(id, realm, username, password_hash, created_at) VALUES(?,?,?,?,?)`,
		user.ID, user.Realm, user.Username, user.PasswordHash, user.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	statement, err := transaction.PrepareContext(ctx, `INSERT INTO user_roles(user_id, role, realm) VALUES(?,?,?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, role := range user.Roles {
		if _, err := statement.ExecContext(ctx, user.ID, role.Name, role.Realm); err != nil {
			return nil, fmt.Errorf("failed to insert role: %w", err)
		}
	}
	return user, nil
}

func (d *Database) GetUser(ctx context.Context, realm, username string) (*models.User, error) {
	var (
		user      models.User
		createdAt int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, realm, username, password_hash, created_at FROM users WHERE realm = ? AND username = ?`,
		realm, username).Scan(&user.ID, &user.Realm, &user.Username, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUserNotFound, realm, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := d.db.QueryContext(ctx, `SELECT role, realm FROM user_roles WHERE user_id = ? ORDER BY realm, role`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.Name, &role.Realm); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		user.Roles = append(user.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return &user, nil
}

// CheckPassword reports whether password matches the stored hash for the user.
func (d *Database) CheckPassword(ctx context.Context, realm, username, password string) (bool, error) {
	user, err := d.GetUser(ctx, realm, username)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
	return true, nil
}
