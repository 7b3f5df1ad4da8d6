package model

import "time"

const DefaultPostedBy = "Admin"

type Announcement struct {
	ID        string    `json:"id" bson:"_id"`
	Content   string    `json:"content" bson:"content"`
	PostedBy  string    `json:"posted_by" bson:"posted_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Sequence  int64     `json:"-" bson:"sequence"`
}

func (a *Announcement) Clone() *Announcement {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

type AnnouncementCreate struct {
	Content  string `json:"content" validate:"required,max=5000"`
	PostedBy string `json:"posted_by,omitempty" validate:"max=200"`
}
