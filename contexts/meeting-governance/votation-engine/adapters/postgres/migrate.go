package postgresadapter

import (
	"fmt"

	"gorm.io/gorm"
)

// oneOpenVotationIndex keeps at most one open round per (meeting, proposition).
// The statement is valid on both Postgres and SQLite.
const oneOpenVotationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_votations_one_open
ON votations (meeting_id, proposition_id) WHERE open`

// Migrate creates the engine tables and their uniqueness guarantees.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&meetingModel{},
		&propositionModel{},
		&voteOptionModel{},
		&votationModel{},
		&identityModel{},
		&ballotModel{},
		&voteModel{},
		&auditEventModel{},
		&outboxModel{},
		&eventDedupModel{},
	); err != nil {
		return fmt.Errorf("auto migrate votation engine: %w", err)
	}
	if err := db.Exec(oneOpenVotationIndex).Error; err != nil {
		return fmt.Errorf("create one-open votation index: %w", err)
	}
	return nil
}
