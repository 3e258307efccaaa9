package models

import (
	"context"
	"strings"
	"time"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/utils"
)

type Player struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TeamId    int       `gorm:"index;not null;index:idx_player_team_email,priority:1" json:"team_id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Email     string    `gorm:"size:255;not null;index:idx_player_team_email,priority:2" json:"email"`
	Jersey    *string   `gorm:"size:10" json:"jersey"`
	Position  *string   `gorm:"size:100" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetPlayer(ctx context.Context, teamId int, id int) (*Player, error) {
	return utils.FetchModel[Player](ctx, teamId, id)
}

func GetAllPlayers(ctx context.Context, teamId int) ([]*Player, error) {
	return utils.FetchAllModels[Player](ctx, teamId)
}

// PlayersByEmail loads the team's roster once and keys it by lower-cased
// email, the identity used when reconciling spreadsheet rows.
func PlayersByEmail(ctx context.Context, teamId int) (map[string]*Player, error) {

	db := config.GetDB()
	var players []*Player

	if err := db.WithContext(ctx).Where("team_id = ?", teamId).Find(&players).Error; err != nil {
		return nil, err
	}

	snapshot := make(map[string]*Player, len(players))
	for _, p := range players {
		snapshot[strings.ToLower(p.Email)] = p
	}
	return snapshot, nil
}
