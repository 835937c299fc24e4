package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"accounts/internal/domain"
	"accounts/internal/repository"
	"accounts/internal/service"
)

const adminSecretHeader = "X-Admin-Secret"

// Handler wires HTTP routes to the user service.
type Handler struct {
	users       service.UserService
	adminSecret string
	logger      logrus.FieldLogger
}

func NewHandler(users service.UserService, adminSecret string, logger logrus.FieldLogger) *Handler {
	return &Handler{
		users:       users,
		adminSecret: strings.TrimSpace(adminSecret),
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))

	api := router.Group("/api")
	{
		api.POST("/users", h.createUser)
		api.GET("/users", h.listUsers)
		api.GET("/users/:id", h.getUser)
		api.POST("/superusers", h.requireAdminSecret(), h.createSuperuser)
		api.POST("/auth/check", h.checkCredentials)
		api.GET("/meta/user", h.userMeta)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

func (h *Handler) requireAdminSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader(adminSecretHeader))
		if h.adminSecret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin secret required"})
			return
		}
		c.Next()
	}
}

// registerRequest is accepted on the public route; it carries no flags.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type superuserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	IsStaff     *bool  `json:"is_staff"`
	IsSuperuser *bool  `json:"is_superuser"`
	IsActive    *bool  `json:"is_active"`
}

func (r superuserRequest) options() []service.UserOption {
	var opts []service.UserOption
	if r.IsStaff != nil {
		opts = append(opts, service.WithStaff(*r.IsStaff))
	}
	if r.IsSuperuser != nil {
		opts = append(opts, service.WithSuperuser(*r.IsSuperuser))
	}
	if r.IsActive != nil {
		opts = append(opts, service.WithActive(*r.IsActive))
	}
	return opts
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) createSuperuser(c *gin.Context) {
	var req superuserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.CreateSuperuser(c.Request.Context(), req.Email, req.Password, req.options()...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.WithField("user_id", user.ID).Info("superuser created")
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) checkCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) userMeta(c *gin.Context) {
	c.JSON(http.StatusOK, MetaResponse{
		VerboseName:       domain.UserMeta.VerboseName,
		VerboseNamePlural: domain.UserMeta.VerboseNamePlural,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "user with this email already exists"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type UserResponse struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	IsStaff     bool    `json:"is_staff"`
	IsSuperuser bool    `json:"is_superuser"`
	IsActive    bool    `json:"is_active"`
	DateJoined  string  `json:"date_joined"`
	LastLogin   *string `json:"last_login"`
	Username    *string `json:"username"`
}

type MetaResponse struct {
	VerboseName       string `json:"verbose_name"`
	VerboseNamePlural string `json:"verbose_name_plural"`
}

func userToResponse(user domain.User) UserResponse {
	resp := UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		IsActive:    user.IsActive,
		DateJoined:  user.DateJoined.Format(time.RFC3339),
	}
	if user.LastLogin != nil {
		v := user.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &v
	}
	return resp
}
