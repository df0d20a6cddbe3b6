package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// ConnectPostgres opens the grading database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Classroom{},
		&models.ClassroomMember{},
		&models.Subject{},
		&models.CommentType{},
		&models.Task{},
		&models.Exercise{},
		&models.Criterion{},
		&models.Work{},
		&models.Answer{},
		&models.AnswerFile{},
		&models.Assessment{},
		&models.Comment{},
		&models.CommentFile{},
		&models.Plan{},
		&models.Subscription{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
