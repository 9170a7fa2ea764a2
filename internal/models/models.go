package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is the identity record as stored. PasswordHash never leaves the
// service layer; use Sanitize before returning a user outward. The active
// refresh token lives on the same row but is only reachable through the
// session storage.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Fullname     string
	Avatar       string
	CoverImage   string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Fullname   string    `json:"fullname"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) Sanitize() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Fullname:   u.Fullname,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is what a successful login hands back to the caller.
type Session struct {
	User PublicUser `json:"user"`
	TokenPair
}

type ChannelProfile struct {
	ID                        uuid.UUID `json:"id"`
	Username                  string    `json:"username"`
	Fullname                  string    `json:"fullname"`
	Email                     string    `json:"email"`
	Avatar                    string    `json:"avatar"`
	CoverImage                string    `json:"coverImage"`
	SubscribersCount          int64     `json:"subscribersCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
}
