package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/entreepos/entree-web/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "entree-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}
	// Keep hashing fast in tests
	db.bcryptCost = bcrypt.MinCost

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func countRows(t *testing.T, db *Database, table string) int {
	t.Helper()
	var count int
	err := db.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestNewDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Expected non-nil database")
	}
	if db.db == nil {
		t.Fatal("Expected non-nil sql.DB")
	}
	assert.NoError(t, db.Ping(context.Background()))
}

func TestValidateSeedSpec(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	valid := models.SeedSpec{
		Realm:    "entree",
		Username: "root",
		Password: "hunter2",
		Roles:    []models.Role{{Name: "userAdmin", Realm: "entree"}},
	}

	tests := []struct {
		name      string
		mutate    func(*models.SeedSpec)
		wantError bool
	}{
		{"valid spec", func(*models.SeedSpec) {}, false},
		{"empty realm", func(s *models.SeedSpec) { s.Realm = "" }, true},
		{"empty username", func(s *models.SeedSpec) { s.Username = "" }, true},
		{"empty password", func(s *models.SeedSpec) { s.Password = "" }, true},
		{"no roles", func(s *models.SeedSpec) { s.Roles = nil }, true},
		{"unknown role", func(s *models.SeedSpec) { s.Roles = []models.Role{{Name: "root", Realm: "entree"}} }, true},
		{"role without realm", func(s *models.SeedSpec) { s.Roles = []models.Role{{Name: "read"}} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			err := db.ValidateSeedSpec(spec)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateSeedSpec() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil {
				assert.ErrorIs(t, err, ErrInvalidUser)
			}
		})
	}
}

func TestSeedUsersDefaults(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users, err := db.SeedUsers(ctx, DefaultSeedSpecs("s3cret"))
	require.NoError(t, err)
	require.Len(t, users, 2)

	for _, realm := range []string{"entree", "entree_test"} {
		user, err := db.GetUser(ctx, realm, "root")
		require.NoError(t, err)
		assert.Equal(t, []models.Role{{Name: "userAdmin", Realm: realm}}, user.Roles)
		assert.Regexp(t, `^usr-[A-Za-z0-9]{10}$`, user.ID)
		assert.NotEqual(t, "s3cret", user.PasswordHash)

		ok, err := db.CheckPassword(ctx, realm, "root", "s3cret")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestSeedUsersIsRerunnable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := db.SeedUsers(ctx, DefaultSeedSpecs("old"))
	require.NoError(t, err)
	_, err = db.SeedUsers(ctx, DefaultSeedSpecs("new"))
	require.NoError(t, err)

	assert.Equal(t, 2, countRows(t, db, "users"))
	assert.Equal(t, 2, countRows(t, db, "user_roles"))

	user, err := db.GetUser(ctx, "entree", "root")
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, user.ID)

	ok, err := db.CheckPassword(ctx, "entree", "root", "old")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = db.CheckPassword(ctx, "entree", "root", "new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeedUsersInvalidSpecWritesNothing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	specs := DefaultSeedSpecs("pw")
	specs = append(specs, models.SeedSpec{Realm: "entree", Username: "bob"})

	_, err := db.SeedUsers(context.Background(), specs)
	require.ErrorIs(t, err, ErrInvalidUser)
	assert.Equal(t, 0, countRows(t, db, "users"))
}

func TestCreateAndDropUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := db.CreateUser(ctx, models.SeedSpec{
		Realm:    "entree",
		Username: "ops",
		Password: "pw",
		Roles:    []models.Role{{Name: "read", Realm: "entree"}, {Name: "readWrite", Realm: "entree_test"}},
	})
	require.NoError(t, err)

	// Same user twice in one realm violates the unique constraint
	_, err = db.CreateUser(ctx, models.SeedSpec{
		Realm:    "entree",
		Username: "ops",
		Password: "pw",
		Roles:    []models.Role{{Name: "read", Realm: "entree"}},
	})
	assert.Error(t, err)

	require.NoError(t, db.DropUser(ctx, "entree", "ops"))
	assert.Equal(t, 0, countRows(t, db, "users"))
	assert.Equal(t, 0, countRows(t, db, "user_roles"))

	// Dropping again is a no-op
	require.NoError(t, db.DropUser(ctx, "entree", "ops"))

	_, err = db.GetUser(ctx, "entree", "ops")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCheckPasswordUnknownUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.CheckPassword(context.Background(), "entree", "nobody", "pw")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDatabaseClose(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.Close()
	if err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}
