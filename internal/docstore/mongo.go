package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanbanlite-backend/internal/model"
)

// Mongo implements Store and UserStore on top of MongoDB. Change streams
// back the Watch contract: any change event triggers a full re-read of the
// collection, which is then pushed as the next snapshot. Dates live in the
// store as native BSON timestamps and cross the JSON boundary as ISO-8601.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logrus.Logger
}

// Connect dials MongoDB and pings it before returning. Change streams need a
// replica set (a single-node one is enough for development).
func Connect(ctx context.Context, uri, dbName string, log *logrus.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Mongo{client: client, db: client.Database(dbName), log: log}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateProject(ctx context.Context, p model.Project) error {
	_, err := m.db.Collection(CollectionProjects).InsertOne(ctx, p)
	return err
}

func (m *Mongo) UpdateProject(ctx context.Context, id string, f Fields) error {
	return m.updateOne(ctx, CollectionProjects, id, f)
}

func (m *Mongo) CreateTask(ctx context.Context, t model.Task) error {
	_, err := m.db.Collection(CollectionTasks).InsertOne(ctx, t)
	return err
}

func (m *Mongo) UpdateTask(ctx context.Context, id string, f Fields) error {
	return m.updateOne(ctx, CollectionTasks, id, f)
}

func (m *Mongo) DeleteTask(ctx context.Context, id string) error {
	_, err := m.db.Collection(CollectionTasks).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (m *Mongo) updateOne(ctx context.Context, collection, id string, f Fields) error {
	update := mergeUpdate(f)
	if len(update) == 0 {
		return nil
	}
	res, err := m.db.Collection(collection).UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mergeUpdate translates merge semantics into $set/$unset: present keys
// overwrite, nil-valued keys clear.
func mergeUpdate(f Fields) bson.M {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range f {
		if v == nil {
			unset[k] = ""
		} else {
			set[k] = v
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// Batch runs all ops inside one transaction. A delete of an already-missing
// document is not an error: cascades racing another client still finish.
func (m *Mongo) Batch(ctx context.Context, ops []Op) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range ops {
			if err := m.applyOp(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (m *Mongo) applyOp(ctx context.Context, op Op) error {
	coll := m.db.Collection(op.Collection)
	switch op.Kind {
	case OpCreate:
		_, err := coll.InsertOne(ctx, op.Doc)
		return err
	case OpUpdate:
		update := mergeUpdate(op.Fields)
		if len(update) == 0 {
			return nil
		}
		_, err := coll.UpdateByID(ctx, op.ID, update)
		return err
	case OpDelete:
		_, err := coll.DeleteOne(ctx, bson.M{"_id": op.ID})
		return err
	default:
		return fmt.Errorf("unknown batch op kind %d", op.Kind)
	}
}

func (m *Mongo) WatchProjects(ctx context.Context) (<-chan []model.Project, <-chan error, error) {
	return watchCollection(ctx, m, CollectionProjects, m.readProjects)
}

func (m *Mongo) WatchTasks(ctx context.Context) (<-chan []model.Task, <-chan error, error) {
	return watchCollection(ctx, m, CollectionTasks, m.readTasks)
}

// watchCollection opens a change stream and pushes a fresh full read of the
// collection on start and after every change event. Replace-on-change is
// deliberately simple: it cannot be confused by out-of-order or missed
// incremental updates.
func watchCollection[T any](
	ctx context.Context,
	m *Mongo,
	collection string,
	read func(context.Context) ([]T, error),
) (<-chan []T, <-chan error, error) {
	cs, err := m.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	snaps := make(chan []T, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(snaps)
		defer cs.Close(context.Background())

		push := func() bool {
			docs, err := read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("read %s: %w", collection, err)
				}
				return false
			}
			// Single producer: a pending stale snapshot is replaced, the
			// consumer always drains the latest.
			select {
			case snaps <- docs:
			default:
				select {
				case <-snaps:
				default:
				}
				snaps <- docs
			}
			return true
		}

		if !push() {
			return
		}
		for cs.Next(ctx) {
			if !push() {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("change stream %s: %w", collection, err)
		}
	}()

	return snaps, errs, nil
}

func (m *Mongo) readProjects(ctx context.Context) ([]model.Project, error) {
	cur, err := m.db.Collection(CollectionProjects).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var out []model.Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) readTasks(ctx context.Context) ([]model.Task, error) {
	cur, err := m.db.Collection(CollectionTasks).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var out []model.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) CreateUser(ctx context.Context, u model.User) error {
	count, err := m.db.Collection(CollectionUsers).CountDocuments(ctx, bson.M{"email": u.Email})
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("email already exists")
	}
	_, err = m.db.Collection(CollectionUsers).InsertOne(ctx, u)
	return err
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := m.db.Collection(CollectionUsers).FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func (m *Mongo) UserByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := m.db.Collection(CollectionUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, ErrNotFound
	}
	return u, err
}
