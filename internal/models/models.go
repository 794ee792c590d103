// Package models holds the document shapes persisted to the document store.
// Counters on Concert and Photo are denormalized aggregates; they are only
// ever mutated through the ledger's atomic increment, never by writing the
// whole document back.
package models

import "time"

const (
	ConcertsCollection = "concerts"
	PhotosCollection   = "photos"
	CommentsCollection = "comments"
	LikesCollection    = "likes"
)

// Counter field names used with the document store's atomic increment.
const (
	FieldPhotosCount   = "photos_count"
	FieldLikesCount    = "likes_count"
	FieldCommentsCount = "comments_count"
)

type Concert struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Venue       string    `json:"venue"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	PhotosCount int64     `json:"photos_count"`
}

type Photo struct {
	ID            string    `json:"id"`
	ConcertID     string    `json:"concert_id"`
	FileName      string    `json:"file_name"`
	FilePath      string    `json:"file_path"`      // blob key of the original
	ThumbPath     string    `json:"thumb_path"`     // blob key of the thumbnail
	URL           string    `json:"url"`            // public URL of the original
	ThumbnailURL  string    `json:"thumbnail_url"`  // public URL of the thumbnail
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
}

type Like struct {
	ID        string    `json:"id"`
	PhotoID   string    `json:"photo_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        string     `json:"id"`
	PhotoID   string     `json:"photo_id"`
	UserID    string     `json:"user_id"`
	UserName  string     `json:"user_name,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (c *Concert) Doc() map[string]any {
	return map[string]any{
		"title":          c.Title,
		"date":           c.Date,
		"venue":          c.Venue,
		"description":    c.Description,
		"created_by":     c.CreatedBy,
		"created_at":     c.CreatedAt,
		"updated_at":     c.UpdatedAt,
		FieldPhotosCount: c.PhotosCount,
	}
}

func ConcertFromDoc(id string, doc map[string]any) *Concert {
	return &Concert{
		ID:          id,
		Title:       docString(doc, "title"),
		Date:        docTime(doc, "date"),
		Venue:       docString(doc, "venue"),
		Description: docString(doc, "description"),
		CreatedBy:   docString(doc, "created_by"),
		CreatedAt:   docTime(doc, "created_at"),
		UpdatedAt:   docTime(doc, "updated_at"),
		PhotosCount: docInt(doc, FieldPhotosCount),
	}
}

func (p *Photo) Doc() map[string]any {
	return map[string]any{
		"concert_id":       p.ConcertID,
		"file_name":        p.FileName,
		"file_path":        p.FilePath,
		"thumb_path":       p.ThumbPath,
		"url":              p.URL,
		"thumbnail_url":    p.ThumbnailURL,
		"content_type":     p.ContentType,
		"size":             p.Size,
		"uploaded_by":      p.UploadedBy,
		"uploaded_at":      p.UploadedAt,
		FieldLikesCount:    p.LikesCount,
		FieldCommentsCount: p.CommentsCount,
	}
}

func PhotoFromDoc(id string, doc map[string]any) *Photo {
	return &Photo{
		ID:            id,
		ConcertID:     docString(doc, "concert_id"),
		FileName:      docString(doc, "file_name"),
		FilePath:      docString(doc, "file_path"),
		ThumbPath:     docString(doc, "thumb_path"),
		URL:           docString(doc, "url"),
		ThumbnailURL:  docString(doc, "thumbnail_url"),
		ContentType:   docString(doc, "content_type"),
		Size:          docInt(doc, "size"),
		UploadedBy:    docString(doc, "uploaded_by"),
		UploadedAt:    docTime(doc, "uploaded_at"),
		LikesCount:    docInt(doc, FieldLikesCount),
		CommentsCount: docInt(doc, FieldCommentsCount),
	}
}

func (l *Like) Doc() map[string]any {
	return map[string]any{
		"photo_id":   l.PhotoID,
		"user_id":    l.UserID,
		"created_at": l.CreatedAt,
	}
}

func LikeFromDoc(id string, doc map[string]any) *Like {
	return &Like{
		ID:        id,
		PhotoID:   docString(doc, "photo_id"),
		UserID:    docString(doc, "user_id"),
		CreatedAt: docTime(doc, "created_at"),
	}
}

func (c *Comment) Doc() map[string]any {
	doc := map[string]any{
		"photo_id":   c.PhotoID,
		"user_id":    c.UserID,
		"user_name":  c.UserName,
		"content":    c.Content,
		"created_at": c.CreatedAt,
	}
	if c.UpdatedAt != nil {
		doc["updated_at"] = *c.UpdatedAt
	}
	return doc
}

func CommentFromDoc(id string, doc map[string]any) *Comment {
	c := &Comment{
		ID:        id,
		PhotoID:   docString(doc, "photo_id"),
		UserID:    docString(doc, "user_id"),
		UserName:  docString(doc, "user_name"),
		Content:   docString(doc, "content"),
		CreatedAt: docTime(doc, "created_at"),
	}
	if t := docTime(doc, "updated_at"); !t.IsZero() {
		c.UpdatedAt = &t
	}
	return c
}

func docString(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func docTime(doc map[string]any, key string) time.Time {
	if v, ok := doc[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func docInt(doc map[string]any, key string) int64 {
	switch v := doc[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
