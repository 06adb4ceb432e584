package model

import "time"

// Field length limits enforced before any store write.
const (
	MaxProjectNameLen = 50
	MaxProjectDescLen = 200
	MaxTaskTitleLen   = 100
	MaxTaskDescLen    = 500
	MaxCommentTextLen = 500
)

// Project owns its tasks; deleting a project cascades to them.
type Project struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Comment belongs to a task. FileURL and FileName reference a blob that was
// already uploaded by the time the comment records it; they are both present
// or both absent.
type Comment struct {
	ID        string     `json:"id" bson:"id"`
	Text      string     `json:"text" bson:"text"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	FileURL   string     `json:"fileURL,omitempty" bson:"fileURL,omitempty"`
	FileName  string     `json:"fileName,omitempty" bson:"fileName,omitempty"`
}

func (c Comment) HasAttachment() bool {
	return c.FileURL != "" && c.FileName != ""
}

// Task is the board entity. Order is sparse: older records never had the
// field, so display order falls back to CreatedAt (and finally ID) for them.
// Comments keep insertion order in storage; display order is recency.
type Task struct {
	ID          string    `json:"id" bson:"_id"`
	ProjectID   string    `json:"projectId" bson:"projectId"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Status      Status    `json:"status" bson:"status"`
	Priority    Priority  `json:"priority,omitempty" bson:"priority,omitempty"`
	Deadline    string    `json:"deadline,omitempty" bson:"deadline,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	Order       *int64    `json:"order,omitempty" bson:"order,omitempty"`
	Comments    []Comment `json:"comments,omitempty" bson:"comments,omitempty"`
}

// Clone returns a deep copy so snapshot diffing never observes shared state.
func (t Task) Clone() Task {
	out := t
	if t.Order != nil {
		v := *t.Order
		out.Order = &v
	}
	if t.Comments != nil {
		out.Comments = make([]Comment, len(t.Comments))
		copy(out.Comments, t.Comments)
		for i, c := range t.Comments {
			if c.UpdatedAt != nil {
				ts := *c.UpdatedAt
				out.Comments[i].UpdatedAt = &ts
			}
		}
	}
	return out
}

// CommentByID returns the comment and its index in storage order.
func (t Task) CommentByID(id string) (Comment, int, bool) {
	for i, c := range t.Comments {
		if c.ID == id {
			return c, i, true
		}
	}
	return Comment{}, -1, false
}

// AttachmentURLs collects every blob reference held by the task's comments.
func (t Task) AttachmentURLs() []string {
	var urls []string
	for _, c := range t.Comments {
		if c.HasAttachment() {
			urls = append(urls, c.FileURL)
		}
	}
	return urls
}

// User is an account record. PasswordHash is a bcrypt hash, never the raw
// password.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}
