package di

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	archivegateway "github.com/ductware/atomtx/internal/adapter/gateway/archive"
	"github.com/ductware/atomtx/internal/app"
	"github.com/ductware/atomtx/internal/application/port/output"
	"github.com/ductware/atomtx/internal/application/service"
	"github.com/ductware/atomtx/internal/domain/repository"
	"github.com/ductware/atomtx/internal/infrastructure/config"
	applogger "github.com/ductware/atomtx/internal/infrastructure/logger"
	"github.com/ductware/atomtx/internal/infrastructure/metrics"
	filerepo "github.com/ductware/atomtx/internal/infrastructure/persistence/file"
	memoryrepo "github.com/ductware/atomtx/internal/infrastructure/persistence/memory"
	sqliterepo "github.com/ductware/atomtx/internal/infrastructure/persistence/sqlite"
	"github.com/ductware/atomtx/internal/infrastructure/state"
)

// Container is the DI container that holds all engine dependencies
// This implements manual dependency injection for Clean Architecture
type Container struct {
	// Infrastructure Layer
	fs        afero.Fs
	db        *sql.DB // nil unless the SQLite history backend is active
	collector *metrics.Collector
	zapLogger *applogger.ZapLogger

	// Infrastructure Layer - Repositories
	snapshotRepo repository.SnapshotRepository
	historyRepo  repository.HistoryRepository

	// Infrastructure Layer - Gateways
	archiveGateway output.ArchiveGateway // nil when archiving is disabled
	stateAccessor  output.StateAccessor

	// Application Layer - Services
	stateManager    service.StateManager
	rollbackManager service.RollbackManager
	txManager       service.TransactionManager

	// Configuration
	config config.Config
}

// NewContainer creates and initializes the DI container against the OS filesystem
func NewContainer(cfg config.Config) (*Container, error) {
	return NewContainerWithFs(cfg, afero.NewOsFs())
}

// NewContainerWithFs creates a container on a caller-supplied filesystem
// This is primarily used for testing with in-memory filesystems
func NewContainerWithFs(cfg config.Config, fs afero.Fs) (*Container, error) {
	c := &Container{
		fs:     fs,
		config: cfg,
	}

	// Initialize dependencies in dependency order
	if err := c.initializeInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	if err := c.initializeApplication(); err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	return c, nil
}

// initializeInfrastructure initializes infrastructure layer components
func (c *Container) initializeInfrastructure() error {
	// 1. Ensure the engine home directory exists
	if err := c.fs.MkdirAll(c.config.Home, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	// 2. Initialize structured logging
	zl, err := applogger.New(c.config.LogMode, c.config.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	c.zapLogger = zl
	app.SetLogger(zl)

	// 3. Start a fresh metrics collector; Close merges this run's deltas
	// into the persisted totals
	c.collector = metrics.NewCollector()

	// 4. Initialize Snapshot Repository based on configuration
	switch c.config.Storage {
	case config.StorageMemory:
		c.snapshotRepo = memoryrepo.NewSnapshotRepository()
	case config.StorageFile:
		c.snapshotRepo = filerepo.NewSnapshotRepository(c.fs, c.config.SnapshotsDir())
	default:
		return fmt.Errorf("unknown storage backend: %s", c.config.Storage)
	}

	// 5. Initialize History Repository based on configuration
	switch c.config.History {
	case config.HistoryMemory:
		c.historyRepo = memoryrepo.NewHistoryRepository()
	case config.HistorySQLite:
		db, err := sql.Open("sqlite3", c.config.HistoryDBPath()+"?_foreign_keys=on")
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		c.db = db

		migrator := sqliterepo.NewMigrator(db)
		if err := migrator.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		c.historyRepo = sqliterepo.NewHistoryRepository(db)
	default:
		return fmt.Errorf("unknown history backend: %s", c.config.History)
	}

	// 6. Initialize Archive Gateway based on configuration
	switch c.config.Archive {
	case config.ArchiveNone:
		c.archiveGateway = nil
	case config.ArchiveLocal:
		localGateway, err := archivegateway.NewLocalArchiveGateway(c.fs, c.config.LocalArchiveDir)
		if err != nil {
			return fmt.Errorf("failed to create local archive gateway: %w", err)
		}
		c.archiveGateway = localGateway
	case config.ArchiveS3:
		if c.config.S3Bucket == "" {
			return fmt.Errorf("S3 bucket name is required for S3 archiving")
		}
		s3Gateway, err := archivegateway.NewS3ArchiveGateway(archivegateway.S3Config{
			BucketName: c.config.S3Bucket,
			Prefix:     c.config.S3Prefix,
			Region:     c.config.S3Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 archive gateway: %w", err)
		}
		c.archiveGateway = s3Gateway
	case config.ArchiveMock:
		c.archiveGateway = archivegateway.NewMockArchiveGateway()
	default:
		return fmt.Errorf("unknown archive backend: %s", c.config.Archive)
	}

	// 7. Initialize the workspace state accessor
	// Engine-owned directories under the workspace must not be captured
	c.stateAccessor = state.NewDirStateAccessor(c.fs, c.config.Workspace, c.workspaceExclusions()...)

	return nil
}

// initializeApplication initializes application layer services
func (c *Container) initializeApplication() error {
	c.stateManager = service.NewStateManager(
		c.snapshotRepo,
		c.stateAccessor,
		c.archiveGateway,
		c.collector,
		c.zapLogger,
	)

	c.rollbackManager = service.NewRollbackManager(
		c.snapshotRepo,
		c.zapLogger,
		service.RollbackManagerConfig{
			FeasibilityWindow: c.config.FeasibilityWindow,
		},
	)

	c.txManager = service.NewTransactionManager(
		c.stateManager,
		c.rollbackManager,
		c.historyRepo,
		c.collector,
		c.zapLogger,
	)

	return nil
}

// workspaceExclusions returns workspace-relative directories the state
// accessor must skip: the engine home and, when local archiving is
// active, the archive directory
func (c *Container) workspaceExclusions() []string {
	dirs := []string{c.config.Home}
	if c.config.Archive == config.ArchiveLocal {
		dirs = append(dirs, c.config.LocalArchiveDir)
	}

	var exclusions []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(c.config.Workspace, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		exclusions = append(exclusions, filepath.ToSlash(rel))
	}
	return exclusions
}

// GetTransactionManager returns the transaction manager
func (c *Container) GetTransactionManager() service.TransactionManager {
	return c.txManager
}

// GetStateManager returns the state manager
func (c *Container) GetStateManager() service.StateManager {
	return c.stateManager
}

// GetRollbackManager returns the rollback manager
func (c *Container) GetRollbackManager() service.RollbackManager {
	return c.rollbackManager
}

// GetSnapshotRepository returns the snapshot repository
func (c *Container) GetSnapshotRepository() repository.SnapshotRepository {
	return c.snapshotRepo
}

// GetHistoryRepository returns the history repository
func (c *Container) GetHistoryRepository() repository.HistoryRepository {
	return c.historyRepo
}

// GetArchiveGateway returns the archive gateway, or nil when archiving is disabled
func (c *Container) GetArchiveGateway() output.ArchiveGateway {
	return c.archiveGateway
}

// GetMetrics returns the metrics collector
func (c *Container) GetMetrics() *metrics.Collector {
	return c.collector
}

// GetFs returns the filesystem the container operates on
func (c *Container) GetFs() afero.Fs {
	return c.fs
}

// GetConfig returns the resolved configuration
func (c *Container) GetConfig() config.Config {
	return c.config
}

// Close flushes metrics and releases all resources held by the container
func (c *Container) Close() error {
	// Persist metrics counters first
	if c.collector != nil {
		if err := c.collector.Save(c.fs, c.config.MetricsPath()); err != nil {
			// Log error but continue closing other resources
			fmt.Fprintf(os.Stderr, "Warning: failed to save metrics: %v\n", err)
		}
	}

	var dbErr error
	if c.db != nil {
		dbErr = c.db.Close()
	}

	if c.zapLogger != nil {
		c.zapLogger.Sync()
	}

	return dbErr
}
