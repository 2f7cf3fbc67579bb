package accounts

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// accountRow is the gorm model backing PostgresPersister. It mirrors the
// FilePersister's pseudo;hash record, just in a relational table instead of
// a flat file — selected via configuration, never the default (see
// SPEC_FULL.md §11).
type accountRow struct {
	Pseudo string `gorm:"primaryKey;size:31"`
	Hash   string `gorm:"size:255;not null"`
}

func (accountRow) TableName() string { return "quiznet_accounts" }

// PostgresPersister persists accounts to a Postgres table via gorm,
// grounded on the teacher's pkg/database/postgres.go connection setup.
type PostgresPersister struct {
	db *gorm.DB
}

// NewPostgresPersister opens a connection to an accounts table already
// brought up to date by internal/accounts/migrations.Apply.
func NewPostgresPersister(dsn string) (*PostgresPersister, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("accounts: connect postgres: %w", err)
	}
	return &PostgresPersister{db: db}, nil
}

// Load returns every persisted account.
func (p *PostgresPersister) Load() ([]Record, error) {
	var rows []accountRow
	if err := p.db.Order("pseudo").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("accounts: load postgres: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, Record{Pseudo: r.Pseudo, Hash: r.Hash})
	}
	return records, nil
}

// Save upserts the full record set inside one transaction, mirroring
// FilePersister's whole-table overwrite semantics.
func (p *PostgresPersister) Save(records []Record) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range records {
			row := accountRow{Pseudo: r.Pseudo, Hash: r.Hash}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("accounts: save postgres: %w", err)
			}
		}
		return nil
	})
}
