package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/voltway/distctl/internal/auth"
	"github.com/voltway/distctl/internal/models"
)

// MinPasswordLength is the password policy enforced on reset
const MinPasswordLength = 8

// SetupRequest represents the first-run setup request
type SetupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is either a challenge (flags set, no user) or a session
type LoginResponse struct {
	MFARequired        bool        `json:"mfaRequired,omitempty"`
	ForcePasswordReset bool        `json:"forcePasswordReset,omitempty"`
	Token              string      `json:"token,omitempty"`
	User               *UserDetail `json:"user,omitempty"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	IsAdmin    bool      `json:"is_admin"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Email              string `json:"email" binding:"required,email"`
	Name               string `json:"name" binding:"required"`
	Password           string `json:"password" binding:"required"`
	Role               string `json:"role"`
	IsAdmin            bool   `json:"is_admin"`
	MFAEnabled         bool   `json:"mfa_enabled"`
	ForcePasswordReset bool   `json:"force_password_reset"`
}

// CreateUserResponse includes the created user details
type CreateUserResponse struct {
	User *UserDetail `json:"user"`
}

func toUserDetail(user *models.User) *UserDetail {
	return &UserDetail{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Role:       user.Role,
		IsAdmin:    user.IsAdmin,
		MFAEnabled: user.MFAEnabled,
		CreatedAt:  user.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// @Summary First-run setup
// @Description Creates the first admin user (only works if no users exist)
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SetupRequest true "Setup request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/setup [post]
func (s *Server) setupFirstAdmin(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Check if any users exist
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Setup already completed"})
		return
	}

	user, err := s.CreateUser(UserSpec{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     "admin",
		IsAdmin:  true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create admin user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, _, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("First admin user created")

	c.JSON(http.StatusOK, LoginResponse{Token: token, User: toUserDetail(user)})
}

// @Summary Login
// @Description Authenticate with email and password. Accounts with MFA or a
// @Description pending password change get a challenge instead of a session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Find user by email
	user, err := s.findUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Verify password
	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	switch {
	case user.MFAEnabled:
		if err := s.issueChallenge(user.Email, models.PurposeMFA); err != nil {
			s.logger.Error().Err(err).Msg("Failed to issue MFA challenge")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		s.logger.Info().Str("user_id", user.ID).Msg("Login requires MFA")
		c.JSON(http.StatusOK, LoginResponse{MFARequired: true, ForcePasswordReset: user.ForcePasswordReset})
		return

	case user.ForcePasswordReset:
		if err := s.issueChallenge(user.Email, models.PurposePasswordReset); err != nil {
			s.logger.Error().Err(err).Msg("Failed to issue reset challenge")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		s.logger.Info().Str("user_id", user.ID).Msg("Login requires password change")
		c.JSON(http.StatusOK, LoginResponse{ForcePasswordReset: true})
		return
	}

	token, _, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	c.JSON(http.StatusOK, LoginResponse{Token: token, User: toUserDetail(user)})
}

// @Summary Logout
// @Description Revoke the presented session token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	revoked := &models.RevokedToken{
		TokenID:   sessionData.TokenID,
		UserID:    sessionData.UserID,
		ExpiresAt: sessionData.TokenExpiresAt,
	}
	if err := s.db.Create(revoked).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to revoke token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", sessionData.UserID).Msg("User logged out")
	c.Status(http.StatusNoContent)
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, toUserDetail(&user))
}

// @Summary List users
// @Description List all users (admin only)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/users [get]
func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Order("created_at DESC").Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	userDetails := make([]*UserDetail, len(users))
	for i := range users {
		userDetails[i] = toUserDetail(&users[i])
	}

	c.JSON(http.StatusOK, userDetails)
}

// @Summary Create user
// @Description Create a new user (admin only)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "Create user request"
// @Success 201 {object} CreateUserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/users [post]
func (s *Server) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.findUserByEmail(req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}

	user, err := s.CreateUser(UserSpec{
		Email:              req.Email,
		Password:           req.Password,
		Name:               req.Name,
		Role:               req.Role,
		IsAdmin:            req.IsAdmin,
		MFAEnabled:         req.MFAEnabled,
		ForcePasswordReset: req.ForcePasswordReset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	sessionData, _ := GetSessionData(c)
	s.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("created_by", sessionData.UserID).
		Msg("User created")

	c.JSON(http.StatusCreated, CreateUserResponse{User: toUserDetail(user)})
}

// @Summary Delete user
// @Description Delete a user (admin only, cannot delete self)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/users/{id} [delete]
func (s *Server) deleteUser(c *gin.Context) {
	userID := c.Param("id")

	sessionData, _ := GetSessionData(c)

	// Prevent deleting self
	if userID == sessionData.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := models.FindByID(s.db, userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := s.db.Delete(&user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("deleted_by", sessionData.UserID).
		Msg("User deleted")

	c.Status(http.StatusNoContent)
}

func (s *Server) findUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserSpec describes an account to create
type UserSpec struct {
	Email              string
	Password           string
	Name               string
	Role               string
	IsAdmin            bool
	MFAEnabled         bool
	ForcePasswordReset bool
}

// CreateUser stores a new account. It backs both the admin endpoint and
// seeding from the command line.
func (s *Server) CreateUser(spec UserSpec) (*models.User, error) {
	passwordHash, err := auth.HashPassword(spec.Password)
	if err != nil {
		return nil, err
	}

	role := spec.Role
	if role == "" {
		role = "operator"
	}

	user := &models.User{
		Email:              normalizeEmail(spec.Email),
		PasswordHash:       passwordHash,
		Name:               spec.Name,
		Role:               role,
		IsAdmin:            spec.IsAdmin,
		MFAEnabled:         spec.MFAEnabled,
		ForcePasswordReset: spec.ForcePasswordReset,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}
