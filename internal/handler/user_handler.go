package handler

import (
	"net/http"

	"studybuddy/backend/internal/database"
	"studybuddy/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// UserResponse is the authenticated user's own profile.
type UserResponse struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	School   string   `json:"school"`
	Classes  []string `json:"classes"`
}

// UpdateProfileInput lets a user set their school and class list.
type UpdateProfileInput struct {
	School  string   `json:"school"`
	Classes []string `json:"classes"`
}

// GetUser godoc
// @Summary      Get the current user
// @Description  Returns the authenticated user's profile.
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /user/getuser [get]
func GetUser(c *gin.Context) {
	userID, _ := c.Get("userID")

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		School:   user.School,
		Classes:  user.Classes,
	})
}

// UpdateProfile godoc
// @Summary      Update school and classes
// @Description  Sets the authenticated user's school and enrolled classes.
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /user/profile [put]
func UpdateProfile(c *gin.Context) {
	userID, _ := c.Get("userID")

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user.School = input.School
	user.Classes = input.Classes
	if err := database.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		School:   user.School,
		Classes:  user.Classes,
	})
}
