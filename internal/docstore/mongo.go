package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore implements Store on a Mongo database. Increment uses an
// aggregation-pipeline update so the add-and-clamp happens server-side in one
// atomic step. Batch runs inside a session transaction when the deployment
// supports it (replica set); otherwise mutations are applied in order and a
// mid-batch failure is surfaced to the caller.
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	log          *zap.SugaredLogger
	transactions bool
}

func NewMongoStore(client *mongo.Client, db *mongo.Database, log *zap.SugaredLogger, transactions bool) *MongoStore {
	return &MongoStore{client: client, db: db, log: log, transactions: transactions}
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	delete(raw, "_id")
	return Document{ID: id, Data: normalizeDoc(raw)}, nil
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, data map[string]any) error {
	doc := bson.M{"_id": id}
	for k, v := range data {
		doc[k] = v
	}
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	doc := bson.M{}
	for k, v := range data {
		doc[k] = v
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	return err
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	filter := bson.M{}
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		id, _ := raw["_id"].(string)
		delete(raw, "_id")
		out = append(out, Document{ID: id, Data: normalizeDoc(raw)})
	}
	return out, cur.Err()
}

func (s *MongoStore) Batch(ctx context.Context, muts []Mutation) error {
	if !s.transactions {
		for i, m := range muts {
			if err := s.applyMutation(ctx, m); err != nil {
				s.log.Errorw("batch aborted mid-way without transaction support",
					"applied", i, "total", len(muts), "err", err)
				return err
			}
		}
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, m := range muts {
			if err := s.applyMutation(sc, m); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoStore) applyMutation(ctx context.Context, m Mutation) error {
	switch m.Op {
	case OpSet:
		return s.Set(ctx, m.Collection, m.ID, m.Data)
	case OpUpdate:
		return s.Update(ctx, m.Collection, m.ID, m.Data)
	case OpDelete:
		return s.Delete(ctx, m.Collection, m.ID)
	case OpIncrement:
		return s.Increment(ctx, m.Collection, m.ID, m.Field, m.Delta)
	}
	return nil
}

// Increment adds delta to the field and clamps the result at zero, entirely
// server-side.
func (s *MongoStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			field: bson.M{"$max": bson.A{
				int64(0),
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$" + field, int64(0)}}, delta}},
			}},
		}}},
	}
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the secondary indexes the services query on. The
// likes collection gets a unique (photo_id, user_id) index as a backstop for
// the deterministic like id.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	photoIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "concert_id", Value: 1}, {Key: "uploaded_at", Value: -1}},
	}
	if _, err := s.db.Collection("photos").Indexes().CreateOne(ctx, photoIdx); err != nil {
		return err
	}
	commentIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "photo_id", Value: 1}, {Key: "created_at", Value: -1}},
	}
	if _, err := s.db.Collection("comments").Indexes().CreateOne(ctx, commentIdx); err != nil {
		return err
	}
	likeIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "photo_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := s.db.Collection("likes").Indexes().CreateOne(ctx, likeIdx)
	return err
}

func normalizeDoc(raw bson.M) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		arr := make([]any, len(t))
		for i, e := range t {
			arr[i] = normalizeValue(e)
		}
		return arr
	case bson.M:
		return normalizeDoc(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}
