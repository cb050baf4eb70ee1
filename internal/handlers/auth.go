package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/apperrors"
	"github.com/taskhive-dev/taskhive/internal/auth"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/types"
	"github.com/taskhive-dev/taskhive/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName     *string `json:"display_name"`
	AvatarURL       *string `json:"avatar_url"`
	Email           *string `json:"email" binding:"omitempty,email"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

func userResponse(u *models.User) types.UserResponse {
	return types.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

func Register(ctx *gin.Context) {
	var body RegisterRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Email, username and password are required"))
		return
	}

	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	body.Username = strings.TrimSpace(body.Username)

	var existing models.User

	err := db.DB.Where("email = ? OR username = ?", body.Email, body.Username).First(&existing).Error

	if err == nil {
		if existing.Email == body.Email {
			respondError(ctx, apperrors.Conflict("Email already exists"))
		} else {
			respondError(ctx, apperrors.Conflict("Username already taken"))
		}
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(ctx, apperrors.Internal("checking existing user", err))
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

	if err != nil {
		respondError(ctx, apperrors.Internal("hashing password", err))
		return
	}

	displayName := body.DisplayName
	if displayName == "" {
		displayName = body.Username
	}

	user := models.User{
		Email:        body.Email,
		Username:     body.Username,
		PasswordHash: string(passwordHash),
		DisplayName:  displayName,
	}

	if err := db.DB.Create(&user).Error; err != nil {
		// a racing registration can slip past the lookup above and
		// land on the unique index instead
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(ctx, apperrors.Conflict("Email or username already exists"))
			return
		}

		respondError(ctx, apperrors.Internal("creating user", err))
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Username)

	if err != nil {
		respondError(ctx, apperrors.Internal("generating token", err))
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"user":  userResponse(&user),
		"token": token,
	})
}

func Login(ctx *gin.Context) {
	var body LoginRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Email and password are required"))
		return
	}

	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	var user models.User

	err := db.DB.Where("email = ?", body.Email).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.Authentication("Invalid email or password"))
			return
		}
		respondError(ctx, apperrors.Internal("fetching user", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		respondError(ctx, apperrors.Authentication("Invalid email or password"))
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Username)

	if err != nil {
		respondError(ctx, apperrors.Internal("generating token", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":  userResponse(&user),
		"token": token,
	})
}

func Me(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": types.UserResponse{
			ID:          currentUser.ID,
			Email:       currentUser.Email,
			Username:    currentUser.Username,
			DisplayName: currentUser.DisplayName,
			AvatarURL:   currentUser.AvatarURL,
		},
	})
}

func UpdateProfile(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	var user models.User

	if err := db.DB.First(&user, currentUser.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("fetching user", err))
		return
	}

	var body UpdateProfileRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Invalid request"))
		return
	}

	updates := make(map[string]interface{})

	if body.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*body.DisplayName)
	}

	if body.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*body.AvatarURL)
	}

	if body.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*body.Email))

		if newEmail != user.Email {
			var existing models.User

			err := db.DB.Where("email = ? AND id != ?", newEmail, user.ID).First(&existing).Error

			if err == nil {
				respondError(ctx, apperrors.Conflict("Email already exists"))
				return
			}

			if !errors.Is(err, gorm.ErrRecordNotFound) {
				respondError(ctx, apperrors.Internal("checking existing email", err))
				return
			}
		}

		updates["email"] = newEmail
	}

	if body.NewPassword != "" {
		if body.CurrentPassword == "" {
			respondError(ctx, apperrors.Validation("Current password is required to change password"))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.CurrentPassword)); err != nil {
			respondError(ctx, apperrors.Validation("Current password is incorrect"))
			return
		}

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)

		if err != nil {
			respondError(ctx, apperrors.Internal("hashing new password", err))
			return
		}

		updates["password_hash"] = string(passwordHash)
	}

	if len(updates) == 0 {
		respondError(ctx, apperrors.Validation("No valid fields to update"))
		return
	}

	if err := db.DB.Model(&user).Updates(updates).Error; err != nil {
		respondError(ctx, apperrors.Internal("updating user", err))
		return
	}

	if err := db.DB.First(&user, user.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("refreshing user", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": userResponse(&user)})
}
