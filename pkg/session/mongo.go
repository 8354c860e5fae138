package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	statusChecksCollection = "status_checks"
	sessionsCollection     = "sessions"
)

// MongoStore persists status checks and sessions as MongoDB documents keyed
// by their "id" field. The native _id is never surfaced.
type MongoStore struct {
	client   *mongo.Client
	checks   *mongo.Collection
	sessions *mongo.Collection
}

// NewMongoStore connects to uri, selects database dbName and ensures the
// session indexes exist.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo url is required")
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		checks:   db.Collection(statusChecksCollection),
		sessions: db.Collection(sessionsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "room_name", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertStatusCheck(ctx context.Context, sc StatusCheck) error {
	_, err := s.checks.InsertOne(ctx, sc)
	return err
}

func (s *MongoStore) ListStatusChecks(ctx context.Context, limit int) ([]StatusCheck, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.checks.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var out []StatusCheck
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) InsertSession(ctx context.Context, cs ConversationSession) error {
	_, err := s.sessions.InsertOne(ctx, cs)
	return err
}

func (s *MongoStore) AppendMessage(ctx context.Context, sessionID string, m Message) (bool, error) {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"id": sessionID},
		bson.M{"$push": bson.M{"messages": m}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// mongoSession is a session document together with its native _id.
type mongoSession struct {
	ObjectID            primitive.ObjectID `bson:"_id"`
	ConversationSession `bson:",inline"`
}

func (d mongoSession) session() ConversationSession {
	cs := d.ConversationSession
	if !d.ObjectID.IsZero() {
		cs.StoreID = d.ObjectID.Hex()
	}
	return cs
}

func (s *MongoStore) FindSession(ctx context.Context, sessionID string) (ConversationSession, bool, error) {
	var doc mongoSession
	err := s.sessions.FindOne(ctx, bson.M{"id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ConversationSession{}, false, nil
	}
	if err != nil {
		return ConversationSession{}, false, err
	}
	return doc.session(), true, nil
}

func (s *MongoStore) SetSessionEnd(ctx context.Context, sessionID string, end time.Time, duration int64) (bool, error) {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"id": sessionID},
		bson.M{"$set": bson.M{"end_time": end, "duration": duration}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
