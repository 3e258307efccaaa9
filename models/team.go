package models

import (
	"context"
	"time"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/utils"
)

type Team struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;unique" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTeam struct {
	Name string `json:"name" binding:"required"`
}

func CreateTeam(ctx context.Context, input *NewTeam) (*Team, error) {

	db := config.GetDB()

	if err := utils.ValidateUnique[Team](ctx, 0, "name", input.Name, 0); err != nil {
		return &Team{}, err
	}

	team := Team{
		Name: input.Name,
	}

	err := db.WithContext(ctx).Create(&team).Error
	if err != nil {
		return &Team{}, err
	}
	return &team, nil
}

/*
caches:
	Team:$id
*/

func GetTeam(ctx context.Context, id int) (*Team, error) {

	cached, err := utils.RetrieveRedis[Team](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	result, err := utils.FetchSingleModel[Team](ctx, id)
	if err != nil {
		return nil, err
	}

	if err := utils.StoreRedis[Team](result, id); err != nil {
		return nil, err
	}

	return result, nil
}
