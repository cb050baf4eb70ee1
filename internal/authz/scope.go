// Package authz centralizes the membership-scoping rule: a user can
// observe or mutate a project, task, comment, or attachment iff a
// membership row links them to the owning project. Every repository
// query composes one of these scopes so the rule is part of the lookup
// criteria itself — a forbidden id and a nonexistent id both come back
// as gorm.ErrRecordNotFound.
package authz

import (
	"errors"

	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/models"
	"gorm.io/gorm"
)

// ProjectIDs returns a subquery selecting the ids of every project the
// user holds a membership in.
func ProjectIDs(userID uint) *gorm.DB {
	return db.DB.Model(&models.ProjectMember{}).
		Select("project_id").
		Where("user_id = ?", userID)
}

// TaskIDs returns a subquery selecting the ids of every task visible
// to the user, transitively via project membership.
func TaskIDs(userID uint) *gorm.DB {
	return db.DB.Model(&models.Task{}).
		Select("id").
		Where("project_id IN (?)", ProjectIDs(userID))
}

// Projects scopes a projects query to rows visible to the user.
func Projects(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("projects.id IN (?)", ProjectIDs(userID))
	}
}

// Tasks scopes a tasks query to rows in the user's projects.
func Tasks(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("tasks.project_id IN (?)", ProjectIDs(userID))
	}
}

// Comments scopes a comments query to tasks the user can see.
func Comments(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("comments.task_id IN (?)", TaskIDs(userID))
	}
}

// Attachments scopes an attachments query to tasks the user can see.
func Attachments(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("attachments.task_id IN (?)", TaskIDs(userID))
	}
}

// Membership fetches the user's membership row for a project, for role
// checks. Returns gorm.ErrRecordNotFound when no row exists, which
// callers must surface as NotFound, not Forbidden.
func Membership(userID, projectID uint) (*models.ProjectMember, error) {
	var member models.ProjectMember

	err := db.DB.
		Where("user_id = ? AND project_id = ?", userID, projectID).
		First(&member).Error

	if err != nil {
		return nil, err
	}

	return &member, nil
}

// IsMember reports whether the user belongs to the project.
func IsMember(userID, projectID uint) (bool, error) {
	_, err := Membership(userID, projectID)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
