package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/lineup/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
)

// Defaults matching the existing roster collection.
const (
	DefaultDatabase   = "ocr"
	DefaultCollection = "prior_data"
	defaultTimeout    = 10 * time.Second
)

// record is the stored document: the roster fields plus its key hash.
type record struct {
	model.Roster `bson:",inline"`
	DetectionKey string `bson:"detection_key"`
}

// MongoStore stores rosters in a MongoDB collection. A unique index on
// detection_key keeps at most one document per card.
type MongoStore struct {
	client     *mongo.Client
	coll       *mongo.Collection
	database   string
	collection string
	timeout    time.Duration
}

// NewMongoStore connects to uri, verifies the primary is reachable and
// ensures the collection indexes exist.
func NewMongoStore(ctx context.Context, uri string, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{
		database:   DefaultDatabase,
		collection: DefaultCollection,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrConnect, err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, multierr.Combine(err, client.Disconnect(ctx)))
	}

	s.client = client
	s.coll = client.Database(s.database).Collection(s.collection)
	if err := s.ensureIndexes(cctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, multierr.Combine(err, client.Disconnect(ctx)))
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "detection_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("detection_key_unique"),
		},
		{
			Keys:    bson.D{{Key: "team_name", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("team_newest"),
		},
	})
	return err
}

func (s *MongoStore) Exists(ctx context.Context, key model.DetectionKey) (bool, error) {
	start := time.Now()
	defer recordQuery(start)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.M{"detection_key": key.Hash()}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count %s: %w", key.Hash(), err)
	}
	return n > 0, nil
}

func (s *MongoStore) Insert(ctx context.Context, r model.Roster) error {
	start := time.Now()
	defer recordInsert(start)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, record{Roster: r, DetectionKey: r.Key().Hash()})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: team %q", ErrDuplicate, r.TeamName)
	}
	if err != nil {
		return fmt.Errorf("insert %q: %w", r.TeamName, err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, team string) (model.Roster, error) {
	start := time.Now()
	defer recordQuery(start)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec record
	err := s.coll.FindOne(ctx,
		bson.M{"team_name": team},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Roster{}, fmt.Errorf("%w: %q", ErrNotFound, team)
	}
	if err != nil {
		return model.Roster{}, fmt.Errorf("find %q: %w", team, err)
	}
	return rec.Roster, nil
}

func (s *MongoStore) Teams(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	values, err := s.coll.Distinct(ctx, "team_name", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct team_name: %w", err)
	}
	teams := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			teams = append(teams, name)
		}
	}
	sort.Strings(teams)
	return teams, nil
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count rosters: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
