package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service *Service
	log     *zap.Logger
}

func NewAuthHandler(service *Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{service: service, log: log}
}

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithReason(c, http.StatusUnprocessableEntity, "invalid_request")
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.Username, req.Password, c.Request.UserAgent())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithReason(c, http.StatusUnprocessableEntity, "invalid_request")
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.Token, c.Request.UserAgent())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	access, ok := bearerToken(c)
	if !ok {
		h.abortWithError(c, ErrCredentialsInvalid)
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithReason(c, http.StatusUnprocessableEntity, "invalid_request")
		return
	}

	if err := h.service.Logout(c.Request.Context(), access, req.Token, c.Request.UserAgent()); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	access, ok := bearerToken(c)
	if !ok {
		h.abortWithError(c, ErrCredentialsInvalid)
		return
	}

	claims, err := h.service.GetCurrentUser(c.Request.Context(), access)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

// Verify lets backend services ask whether a bearer token carries a role.
func (h *AuthHandler) Verify(c *gin.Context) {
	access, ok := bearerToken(c)
	if !ok {
		h.abortWithError(c, ErrCredentialsInvalid)
		return
	}

	claims, err := h.service.CheckRights(c.Request.Context(), access, c.Query("role"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

// History pages through the caller's activity with ?limit= and ?offset=.
func (h *AuthHandler) History(c *gin.Context) {
	access, ok := bearerToken(c)
	if !ok {
		h.abortWithError(c, ErrCredentialsInvalid)
		return
	}
	limit, err := queryInt(c, "limit", 0, 1)
	if err != nil {
		abortWithReason(c, http.StatusUnprocessableEntity, "invalid_request")
		return
	}
	offset, err := queryInt(c, "offset", 0, 0)
	if err != nil {
		abortWithReason(c, http.StatusUnprocessableEntity, "invalid_request")
		return
	}

	activities, err := h.service.History(c.Request.Context(), access, limit, offset)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func queryInt(c *gin.Context, key string, def, minimum int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < minimum {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func (h *AuthHandler) abortWithError(c *gin.Context, err error) {
	status, reason := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusUnprocessableEntity {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
	abortWithReason(c, status, reason)
}

func abortWithReason(c *gin.Context, status int, reason string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": reason, "detail": reasonDetail[reason]})
}
