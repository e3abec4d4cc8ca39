package db

import (
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/types"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(

		// =========================
		// Ingestion (repos + content-addressed blobs + nodes)
		// =========================
		&types.RepositorySnapshot{},
		&types.FileBlob{},
		&types.CodeNode{},
		&types.Embedding{},

		// =========================
		// Requirements + matching
		// =========================
		&types.Requirement{},
		&types.RequirementRevision{},
		&types.RequirementMatch{},

		// =========================
		// Re-validation (audit + cache)
		// =========================
		&types.DriftRecord{},
		&types.GapRecord{},

		// =========================
		// Jobs / worker
		// =========================
		&types.JobRun{},
		&types.JobRunEvent{},
	)
}
