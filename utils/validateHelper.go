package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/rosterpilot/roster_backend/config"
)

// check if id exists, using ctx's team_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, teamId int, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, teamId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, teamId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, teamId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, teamId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE team_id = ? AND $condition
// team_id can be zero for unscoped system queries
func ResourceCountWhere[T any](ctx context.Context, teamId int, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if teamId != 0 {
		dbCtx.Where("team_id = ?", teamId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
