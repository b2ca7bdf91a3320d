package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/analyticshub/gatekeeper/internal/database"
	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/analyticshub/gatekeeper/internal/repositories"
	"github.com/analyticshub/gatekeeper/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("gatekeeper"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	dbWrapper := database.NewFromPool(pool, logger)

	// Migrations are embedded in the database package; the same files run in
	// production and in tests.
	if err := dbWrapper.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"login_attempts",
		"blacklisted_ips",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from the database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.UserRepository,
	*repositories.LoginAttemptRepository,
	*repositories.BlacklistRepository,
) {
	return repositories.NewUserRepository(db),
		repositories.NewLoginAttemptRepository(db),
		repositories.NewBlacklistRepository(db)
}

// SeedUser inserts a test user with a hashed password
func SeedUser(ctx context.Context, db *database.DB, email, password string) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userRepo := repositories.NewUserRepository(db)
	user, err := userRepo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         "Test User",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// SeedFailedAttempts inserts n failed login attempts for an IP inside the
// sliding window
func SeedFailedAttempts(ctx context.Context, db *database.DB, ipAddress, email string, n int) error {
	ledger := repositories.NewLoginAttemptRepository(db)
	for i := 0; i < n; i++ {
		attempt := &models.LoginAttempt{
			Email:       email,
			IPAddress:   ipAddress,
			UserAgent:   "integration-test",
			Success:     false,
			AttemptedAt: time.Now().Add(-time.Duration(i) * time.Minute),
		}
		if err := ledger.Record(ctx, attempt); err != nil {
			return fmt.Errorf("failed to seed attempt %d: %w", i, err)
		}
	}
	return nil
}
