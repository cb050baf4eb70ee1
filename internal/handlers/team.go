package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/apperrors"
	"github.com/taskhive-dev/taskhive/internal/authz"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/types"
	"github.com/taskhive-dev/taskhive/internal/utils"
)

type TeamMemberResponse struct {
	types.UserResponse
	AssignedTaskCount int64 `json:"assigned_task_count"`
}

// ListTeam returns every user who shares at least one project with the
// requester, annotated with their assigned task count across ALL
// projects, shared or not.
func ListTeam(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	teammateIDs := db.DB.Model(&models.ProjectMember{}).
		Distinct("user_id").
		Where("project_id IN (?)", authz.ProjectIDs(userID))

	var users []models.User

	if err := db.DB.Where("id IN (?)", teammateIDs).
		Order("username ASC").
		Find(&users).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing team", err))
		return
	}

	assignedCounts := make(map[uint]int64)

	var counts []struct {
		AssigneeID uint
		Count      int64
	}

	if err := db.DB.Model(&models.Task{}).
		Select("assignee_id, COUNT(*) AS count").
		Where("assignee_id IN (?)", teammateIDs).
		Group("assignee_id").
		Scan(&counts).Error; err != nil {
		respondError(ctx, apperrors.Internal("counting assigned tasks", err))
		return
	}

	for _, c := range counts {
		assignedCounts[c.AssigneeID] = c.Count
	}

	response := make([]TeamMemberResponse, 0, len(users))

	for i := range users {
		u := &users[i]
		response = append(response, TeamMemberResponse{
			UserResponse:      userResponse(u),
			AssignedTaskCount: assignedCounts[u.ID],
		})
	}

	ctx.JSON(http.StatusOK, response)
}
