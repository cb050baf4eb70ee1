package db

import (
	"github.com/taskhive-dev/taskhive/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDatabase(dsn string) error {
	return Connect(postgres.Open(dsn))
}

// Connect opens the database with an arbitrary dialector. Tests use it
// to back the global handle with in-memory sqlite.
func Connect(dialector gorm.Dialector) error {
	var err error

	// TranslateError turns driver duplicate-key failures into
	// gorm.ErrDuplicatedKey, so racing inserts against the unique
	// indexes surface as conflicts instead of opaque 500s.
	DB, err = gorm.Open(dialector, &gorm.Config{TranslateError: true})

	return err
}

func MigrateDatabase() error {
	models := []interface{}{
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.Comment{},
		&models.Attachment{},
	}

	migrator := DB.Migrator()

	for _, model := range models {
		if !migrator.HasTable(model) {
			if err := DB.AutoMigrate(model); err != nil {
				return err
			}
		}
	}

	return nil
}
