// seed-admin creates or updates the default coach account for a team.
// If the team named by --team does not exist it is created first.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin --team "Demo FC"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/models"
	"github.com/rosterpilot/roster_backend/utils"
	"gorm.io/gorm"
)

const (
	coachUsername = "rosterAdmin"
	coachPassword = "R0$terAdmin"
	coachName     = "Roster Admin"
)

func main() {
	teamName := flag.String("team", "Demo FC", "team to attach the coach account to")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	name := strings.TrimSpace(*teamName)
	if name == "" {
		fmt.Fprintln(os.Stderr, "--team must not be empty")
		os.Exit(1)
	}

	ctx = utils.SetSkipTeamScopeInContext(ctx, true)

	var team models.Team
	err := db.WithContext(ctx).Model(&models.Team{}).Where("name = ?", name).First(&team).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup team: %v\n", err)
			os.Exit(1)
		}
		team = models.Team{Name: name}
		if err := db.WithContext(ctx).Create(&team).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create team: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created team: %q (id=%d)\n", name, team.ID)
	}

	hashed, err := utils.HashPassword(coachPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", coachUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			TeamId:   team.ID,
			Username: coachUsername,
			Name:     coachName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create coach user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created coach user: username=%q team_id=%d\n", coachUsername, team.ID)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", coachUsername).Updates(map[string]any{
		"password":  hashedStr,
		"name":      coachName,
		"is_active": utils.NewTrue(),
		"team_id":   team.ID,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update coach user: %v\n", err)
		os.Exit(1)
	}
	_ = config.RemoveRedisKey("User:" + coachUsername)
	_ = utils.RemoveRedisItem[models.Team](team.ID)
	fmt.Printf("Updated coach user: username=%q team_id=%d\n", coachUsername, team.ID)
}
