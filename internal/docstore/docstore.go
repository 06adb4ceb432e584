// Package docstore is the seam to the remote document database. The board
// never patches its mirror directly: every mutation is written here and comes
// back through the Watch snapshot streams.
package docstore

import (
	"context"
	"errors"

	"kanbanlite-backend/internal/model"
)

const (
	CollectionProjects = "projects"
	CollectionTasks    = "tasks"
	CollectionUsers    = "users"
)

// ErrNotFound is returned when an update or lookup targets a document that
// no longer exists. Concurrent deletion by another client makes this an
// expected condition, not a bug.
var ErrNotFound = errors.New("document not found")

// Fields is a merge-style partial write: present keys overwrite, a nil value
// clears the field, omitted keys are left untouched.
type Fields map[string]any

type OpKind int

const (
	OpCreate OpKind = iota + 1
	OpUpdate
	OpDelete
)

// Op is one entry of an all-or-nothing batch.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Doc        any    // OpCreate only
	Fields     Fields // OpUpdate only
}

func CreateOp(collection string, doc any) Op {
	return Op{Kind: OpCreate, Collection: collection, Doc: doc}
}

func UpdateOp(collection, id string, f Fields) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: f}
}

func DeleteOp(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Store is the document-store contract the board writes through. Watch
// streams push the complete current collection on every change to any
// document in it; the error channel carries at most one terminal failure.
type Store interface {
	CreateProject(ctx context.Context, p model.Project) error
	UpdateProject(ctx context.Context, id string, f Fields) error
	CreateTask(ctx context.Context, t model.Task) error
	UpdateTask(ctx context.Context, id string, f Fields) error
	DeleteTask(ctx context.Context, id string) error

	// Batch executes all ops atomically: either every write lands or none do.
	Batch(ctx context.Context, ops []Op) error

	WatchProjects(ctx context.Context) (<-chan []model.Project, <-chan error, error)
	WatchTasks(ctx context.Context) (<-chan []model.Task, <-chan error, error)
}

// UserStore holds account records for the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
}
