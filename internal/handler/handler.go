package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"videotube/internal/config"
	"videotube/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

type Handler struct {
	serviceLayer service.Service
	tokens       AccessVerifier
	cookies      cookieSettings
	log          *slog.Logger
}

type cookieSettings struct {
	config.Cookie
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type errorResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, tokens AccessVerifier, cfg *config.Config, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		tokens:       tokens,
		cookies: cookieSettings{
			Cookie:     cfg.Cookie,
			accessTTL:  cfg.AccessTokenTTL,
			refreshTTL: cfg.RefreshTokenTTL,
		},
		log: lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	users := router.Group("/api/v1/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)
		users.POST("/refresh-token", h.RefreshToken)
		users.GET("/c/:username", OptionalAuthMiddleware(h.tokens), h.GetChannelProfile)

		secured := users.Group("")
		secured.Use(AuthMiddleware(h.tokens))
		{
			secured.POST("/logout", h.Logout)
			secured.POST("/change-password", h.ChangePassword)
			secured.GET("/current-user", h.CurrentUser)
			secured.PATCH("/update-account", h.UpdateAccountDetails)
			secured.PATCH("/avatar", h.UpdateAvatar)
			secured.PATCH("/cover-image", h.UpdateCoverImage)
		}
	}

	return router
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(kind, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a service failure. Anything that is not a typed
// service error is reported as an internal error without its text.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.Error("unexpected service error", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "internal error")

		return
	}

	status := statusFor(svcErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("message", svcErr.Message))
	} else {
		log.Info("request rejected", slog.Int("status", status), slog.String("message", svcErr.Message))
	}

	newErrorResponse(c, status, svcErr.Message)
}

func requestLogger(lgr *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		lgr.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func (h *Handler) setSessionCookies(c *gin.Context, accessToken, refreshToken string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, accessToken, int(h.cookies.accessTTL.Seconds()), h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, refreshToken, int(h.cookies.refreshTTL.Seconds()), h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}
