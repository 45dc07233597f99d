package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/voltway/distctl/internal/auth"
	"github.com/voltway/distctl/internal/models"
)

var (
	errChallengeMissing  = errors.New("no outstanding challenge")
	errChallengeExpired  = errors.New("challenge expired")
	errChallengeMismatch = errors.New("code mismatch")
	errChallengeLocked   = errors.New("too many attempts")
)

// VerifyMFARequest carries the code sent for an MFA challenge
type VerifyMFARequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,otp"`
}

// ResetPasswordRequest carries a reset passcode and the new password
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,otp"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ResendOTPRequest asks for a fresh passcode
type ResendOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Purpose string `json:"purpose" binding:"required,oneof=MFA PASSWORD_RESET"`
}

// @Summary Verify MFA code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyMFARequest true "Verification request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Router /api/auth/mfa/verify [post]
func (s *Server) verifyMFA(c *gin.Context) {
	var req VerifyMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification code"})
		return
	}

	if err := s.consumeChallenge(req.Email, models.PurposeMFA, req.Code); err != nil {
		s.respondChallengeError(c, err, "Invalid verification code")
		return
	}

	user, err := s.findUserByEmail(req.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// The password change follows MFA, so the reset code goes out now
	if user.ForcePasswordReset {
		if err := s.issueChallenge(user.Email, models.PurposePasswordReset); err != nil {
			s.logger.Error().Err(err).Msg("Failed to issue reset challenge")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	token, _, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("MFA verified")
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: toUserDetail(user)})
}

// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/auth/password/reset [post]
func (s *Server) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset code"})
		return
	}

	if len(req.NewPassword) < MinPasswordLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Password must be at least 8 characters"})
		return
	}

	if err := s.consumeChallenge(req.Email, models.PurposePasswordReset, req.OTP); err != nil {
		s.respondChallengeError(c, err, "Invalid or expired reset code")
		return
	}

	user, err := s.findUserByEmail(req.Email)
	if err != nil {
		// Codes are only issued for known accounts
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := s.db.Model(user).Updates(map[string]interface{}{
		"password_hash":        passwordHash,
		"force_password_reset": false,
	}).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Password reset")
	c.JSON(http.StatusOK, gin.H{})
}

// @Summary Resend passcode
// @Description Issues a new passcode. Always succeeds so account existence is not revealed.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResendOTPRequest true "Resend request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/otp/resend [post]
func (s *Server) resendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.findUserByEmail(req.Email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Debug().Str("email", req.Email).Msg("Passcode requested for unknown account")
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	case req.Purpose == models.PurposeMFA && !user.MFAEnabled:
		s.logger.Debug().Str("email", user.Email).Msg("MFA passcode requested for account without MFA")
	default:
		if err := s.issueChallenge(user.Email, req.Purpose); err != nil {
			s.logger.Error().Err(err).Msg("Failed to issue challenge")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) respondChallengeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, errChallengeMissing), errors.Is(err, errChallengeMismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": message})
	case errors.Is(err, errChallengeExpired), errors.Is(err, errChallengeLocked):
		c.JSON(http.StatusGone, gin.H{"error": message})
	default:
		s.logger.Error().Err(err).Msg("Failed to check challenge")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// issueChallenge replaces any outstanding passcode for email and purpose
// with a fresh one and delivers it.
func (s *Server) issueChallenge(email, purpose string) error {
	code := s.opts.FixedCode
	if code == "" {
		var err error
		if code, err = auth.GenerateCode(); err != nil {
			return err
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ? AND purpose = ?", email, purpose).Delete(&models.Challenge{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Challenge{
			Email:     email,
			Purpose:   purpose,
			Code:      code,
			ExpiresAt: s.now().Add(s.opts.CodeTTL),
		}).Error
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("email", email).Str("purpose", purpose).Str("code", code).Msg("Passcode issued")
	if s.opts.OnCode != nil {
		s.opts.OnCode(email, purpose, code)
	}
	return nil
}

// consumeChallenge checks code against the outstanding challenge. A match
// deletes the challenge; a miss counts an attempt.
func (s *Server) consumeChallenge(email, purpose, code string) error {
	var outcome error
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.Where("email = ? AND purpose = ?", normalizeEmail(email), purpose).First(&challenge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = errChallengeMissing
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case challenge.Expired(s.now()):
			outcome = errChallengeExpired
			return tx.Delete(&challenge).Error
		case challenge.Attempts >= s.opts.MaxAttempts:
			outcome = errChallengeLocked
			return nil
		case challenge.Code != code:
			// The transaction must commit so the attempt sticks
			outcome = errChallengeMismatch
			return tx.Model(&challenge).Update("attempts", gorm.Expr("attempts + 1")).Error
		}
		return tx.Delete(&challenge).Error
	})
	if err != nil {
		return err
	}
	return outcome
}
