package handlers

import (
	"crypto/rand"
	"log"
	"math/big"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/auth"
	"github.com/roleai-app/roleai/internal/common"
	"github.com/roleai-app/roleai/internal/email"
	"github.com/roleai-app/roleai/internal/models"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+$`)

const tokenTTL = 24 * time.Hour

type signupReq struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "full name is required")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid email format")
		return
	}
	if len(req.Password) < 6 {
		common.Fail(c, http.StatusBadRequest, 10004, "password must be at least 6 characters long")
		return
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if count > 0 {
		common.Fail(c, http.StatusConflict, 10005, "email is already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	user := models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusConflict, 10005, "email is already registered")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	go func(to, name string) {
		subject := "Welcome to RoleAI - Your account is ready"
		body := "Hello " + name + ",\n\n" +
			"Welcome to RoleAI. Your account has been successfully created.\n\n" +
			"If you did not request this account, please contact our support immediately.\n\n" +
			"Best regards,\nRoleAI\n"
		if err := email.SendText(h.SMTPSetting, to, subject, body); err != nil {
			log.Printf("signup welcome email to=%s err=%v", to, err)
		}
	}(user.Email, user.FullName)

	common.OK(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"email":    user.Email,
			"fullName": user.FullName,
		},
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password are required")
		return
	}

	var user models.User
	err := h.DB.Where("email = ?", req.Email).First(&user).Error
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		// identical response for unknown email and wrong password
		common.Fail(c, http.StatusUnauthorized, 10010, "invalid email or password")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"email":    user.Email,
			"fullName": user.FullName,
		},
	})
}

func randomResetCode() (string, error) {
	const digits = "0123456789"
	out := make([]byte, 6)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}

type forgotPasswordReq struct {
	Email string `json:"email"`
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email is required")
		return
	}

	// Respond identically whether or not the account exists.
	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
			return
		}
		common.OK(c, gin.H{"message": "if the account exists, a reset code has been sent"})
		return
	}

	code, err := randomResetCode()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20004, "failed to generate reset code")
		return
	}
	if err := h.Redis.SetResetCode(c.Request.Context(), req.Email, code); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20005, "redis error")
		return
	}

	go func(to, code string) {
		subject := "RoleAI password reset code"
		body := "Your password reset code is: " + code + "\n\n" +
			"It expires shortly. If you did not request a reset, you can ignore this email.\n"
		if err := email.SendText(h.SMTPSetting, to, subject, body); err != nil {
			log.Printf("reset code email to=%s err=%v", to, err)
		}
	}(req.Email, code)

	common.OK(c, gin.H{"message": "if the account exists, a reset code has been sent"})
}

type verifyResetCodeReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) VerifyResetCode(c *gin.Context) {
	var req verifyResetCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Code == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and code are required")
		return
	}
	if err := h.checkResetCode(c, req.Email, req.Code); err != nil {
		return // envelope already written
	}
	common.OK(c, gin.H{"valid": true})
}

type resetPasswordReq struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Code == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and code are required")
		return
	}
	if len(req.NewPassword) < 6 {
		common.Fail(c, http.StatusBadRequest, 10004, "password must be at least 6 characters long")
		return
	}
	if err := h.checkResetCode(c, req.Email, req.Code); err != nil {
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}
	res := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Update("password_hash", hash)
	if res.Error != nil || res.RowsAffected == 0 {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to update password")
		return
	}
	_ = h.Redis.DeleteResetCode(c.Request.Context(), req.Email)

	common.OK(c, gin.H{"message": "password updated"})
}

// checkResetCode writes a failure envelope and returns a non-nil error when
// the code is missing, expired or wrong.
func (h *Handler) checkResetCode(c *gin.Context, emailAddr, code string) error {
	stored, err := h.Redis.GetResetCode(c.Request.Context(), emailAddr)
	if err != nil {
		if err == redis.Nil {
			common.Fail(c, http.StatusBadRequest, 10020, "reset code expired or not found")
			return err
		}
		common.Fail(c, http.StatusInternalServerError, 20005, "redis error")
		return err
	}
	if stored != code {
		common.Fail(c, http.StatusBadRequest, 10021, "invalid reset code")
		return redis.Nil
	}
	return nil
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}
	common.OK(c, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"fullName": user.FullName,
	})
}
