package models

import (
	"log"

	"github.com/rosterpilot/roster_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Team{}, &User{}, &Player{},
		&ImportJob{}, &ImportRow{},
		&ImportEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
