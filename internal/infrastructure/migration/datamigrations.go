package migration

import (
	"fmt"

	"gorm.io/gorm"

	"plexward/internal/shared/constants"
	"plexward/internal/shared/logger"
)

// RunDataMigrations applies the schema pieces AutoMigrate cannot express.
// The active-invite uniqueness is a partial index: at most one non-revoked
// invite row per donor, while revoked history rows accumulate freely.
func RunDataMigrations(db *gorm.DB) error {
	if db.Dialector.Name() != "sqlite" {
		// MySQL has no partial indexes; the invite repository enforces the
		// single-active-invite rule transactionally on that path.
		logger.WithComponent("migration.data").Warn("skipping partial unique indexes",
			"dialect", db.Dialector.Name())
		return nil
	}

	stmts := []string{
		fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_invite_active_donor ON %s (donor_id) WHERE revoked_at IS NULL AND donor_id IS NOT NULL",
			constants.TableInvites,
		),
		fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_invite_revoked ON %s (revoked_at)",
			constants.TableInvites,
		),
		fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_donor_access_expiry ON %s (status, access_expires_at)",
			constants.TableDonors,
		),
	}

	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to execute data migration %q: %w", stmt, err)
		}
	}
	return nil
}
