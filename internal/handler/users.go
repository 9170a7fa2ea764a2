package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"videotube/internal/media"
	"videotube/internal/models"
	"videotube/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// formFile opens an optional multipart file. A missing field yields a nil
// file and a no-op closer.
func formFile(c *gin.Context, field string) (*media.File, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, func() {}, err
	}

	file := &media.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	}

	return file, func() { _ = f.Close() }, nil
}

// POST /api/v1/users/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	avatar, closeAvatar, err := formFile(c, "avatar")
	if err != nil {
		log.Error("failed to read avatar", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid avatar file")

		return
	}
	defer closeAvatar()

	cover, closeCover, err := formFile(c, "coverImage")
	if err != nil {
		log.Error("failed to read cover image", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid cover image file")

		return
	}
	defer closeCover()

	user, err := h.serviceLayer.Register(c.Request.Context(), service.RegisterInput{
		Fullname:   c.PostForm("fullname"),
		Email:      c.PostForm("email"),
		Username:   c.PostForm("username"),
		Password:   c.PostForm("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, user)
}

// POST /api/v1/users/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to unmarshal login request", slog.Any("err", err))

		newErrorResponse(c, http.StatusBadRequest, "wrong struct")

		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	session, err := h.serviceLayer.Login(c.Request.Context(), identifier, req.Password)
	// Either field may name the account; try the email when the username misses.
	if errors.Is(err, service.ErrNotFound) && req.Email != "" && identifier != req.Email {
		session, err = h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	}
	if err != nil {
		respondError(c, log, err)

		return
	}

	h.setSessionCookies(c, session.AccessToken, session.RefreshToken)

	c.JSON(http.StatusOK, session)
}

// POST /api/v1/users/refresh-token
func (h *Handler) RefreshToken(c *gin.Context) {
	const op = "handler.RefreshToken"

	log := h.log.With(slog.String("op", op))

	incoming, _ := c.Cookie(refreshTokenCookie)
	if incoming == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			incoming = req.RefreshToken
		}
	}

	pair, err := h.serviceLayer.Refresh(c.Request.Context(), incoming)
	if err != nil {
		respondError(c, log, err)

		return
	}

	h.setSessionCookies(c, pair.AccessToken, pair.RefreshToken)

	c.JSON(http.StatusOK, pair)
}

// POST /api/v1/users/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), id); err != nil {
		respondError(c, log, err)

		return
	}

	h.clearSessionCookies(c)

	c.JSON(http.StatusOK, messageResponse{Message: "user logged out"})
}

// POST /api/v1/users/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	const op = "handler.ChangePassword"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to unmarshal change password request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "wrong struct")

		return
	}

	if err := h.serviceLayer.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "password changed successfully"})
}

// GET /api/v1/users/current-user
func (h *Handler) CurrentUser(c *gin.Context) {
	const op = "handler.CurrentUser"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	user, err := h.serviceLayer.CurrentUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// PATCH /api/v1/users/update-account
func (h *Handler) UpdateAccountDetails(c *gin.Context) {
	const op = "handler.UpdateAccountDetails"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to unmarshal account request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "wrong struct")

		return
	}

	user, err := h.serviceLayer.UpdateAccountDetails(c.Request.Context(), id, req.Fullname, req.Email)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// PATCH /api/v1/users/avatar
func (h *Handler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "handler.UpdateAvatar", "avatar", h.serviceLayer.UpdateAvatar)
}

// PATCH /api/v1/users/cover-image
func (h *Handler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "handler.UpdateCoverImage", "coverImage", h.serviceLayer.UpdateCoverImage)
}

func (h *Handler) updateImage(c *gin.Context, op, field string, update func(context.Context, uuid.UUID, *media.File) (models.PublicUser, error)) {
	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	file, closeFile, err := formFile(c, field)
	if err != nil {
		log.Error("failed to read uploaded file", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid file")

		return
	}
	defer closeFile()

	user, err := update(c.Request.Context(), id, file)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// GET /api/v1/users/c/:username
func (h *Handler) GetChannelProfile(c *gin.Context) {
	const op = "handler.GetChannelProfile"

	log := h.log.With(slog.String("op", op))

	var viewer uuid.NullUUID
	if id, ok := currentUserID(c); ok {
		viewer = uuid.NullUUID{UUID: id, Valid: true}
	}

	channel, err := h.serviceLayer.GetChannelProfile(c.Request.Context(), c.Param("username"), viewer)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, channel)
}
