package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/chat"
	"github.com/roleai-app/roleai/internal/modelcfg"
	"github.com/roleai-app/roleai/internal/models"
	"github.com/roleai-app/roleai/internal/role"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&role.Role{},
		&modelcfg.ModelConfig{},
		&chat.Session{},
		&chat.Message{},
	)
}
