// Package mongo stores watcher state in the collections the operator bot
// already reads: cache, loads and settings.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const DefaultDatabase = "truck_load_watch"

type Store struct {
	client   *mongo.Client
	cache    *mongo.Collection
	loads    *mongo.Collection
	settings *mongo.Collection
}

var _ ports.Store = (*Store)(nil)

// Open connects to uri. The database is taken from the uri path, falling
// back to DefaultDatabase.
func Open(ctx context.Context, uri string) (*Store, error) {
	parsed, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	database := parsed.Database
	if database == "" {
		database = DefaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		cache:    db.Collection("cache"),
		loads:    db.Collection("loads"),
		settings: db.Collection("settings"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.loads.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "dsm", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "dt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create load indexes: %w", err)
	}

	_, err = s.settings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create settings index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) GetSession(ctx context.Context) (domain.SessionToken, error) {
	var doc sessionDoc
	err := s.cache.FindOne(ctx, bson.M{"key": sessionDocKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.SessionToken{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("find session: %w", err)
	}
	return domain.SessionToken{Cookies: doc.Cookies, IssuedAt: doc.Dt.UTC()}, nil
}

func (s *Store) SaveSession(ctx context.Context, token domain.SessionToken) error {
	doc := sessionDoc{Key: sessionDocKey, Cookies: token.Cookies, Dt: token.IssuedAt.UTC()}
	_, err := s.cache.ReplaceOne(ctx, bson.M{"key": sessionDocKey}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) IsAccepted(ctx context.Context, externalID string) (bool, error) {
	count, err := s.loads.CountDocuments(ctx, bson.M{"dsm": dsmMatch(externalID)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count load %s: %w", externalID, err)
	}
	return count > 0, nil
}

func (s *Store) CountAcceptedSince(ctx context.Context, since time.Time) (int, error) {
	count, err := s.loads.CountDocuments(ctx, acceptedSince(since))
	if err != nil {
		return 0, fmt.Errorf("count accepted loads: %w", err)
	}
	return int(count), nil
}

func (s *Store) ListAcceptedSince(ctx context.Context, since time.Time) ([]domain.AcceptedLoad, error) {
	cursor, err := s.loads.Find(ctx, acceptedSince(since), options.Find().SetSort(bson.D{{Key: "dt", Value: 1}, {Key: "dsm", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find accepted loads: %w", err)
	}

	var docs []loadDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accepted loads: %w", err)
	}

	loads := make([]domain.AcceptedLoad, 0, len(docs))
	for _, doc := range docs {
		loads = append(loads, doc.toDomain())
	}
	return loads, nil
}

// SaveAccepted checks every id before inserting, so a duplicate in the
// batch leaves the collection untouched. The unique index still guards
// against a concurrent writer.
func (s *Store) SaveAccepted(ctx context.Context, loads []domain.AcceptedLoad) error {
	if len(loads) == 0 {
		return nil
	}

	ids := make([]string, 0, len(loads))
	docs := make([]interface{}, 0, len(loads))
	for _, load := range loads {
		ids = append(ids, load.ExternalID)
		docs = append(docs, toLoadDoc(load))
	}

	var existing loadDoc
	err := s.loads.FindOne(ctx, bson.M{"dsm": dsmMatch(ids...)}).Decode(&existing)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", domain.ErrLoadAlreadyAccepted, string(existing.DSM))
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("check accepted loads: %w", err)
	}

	if _, err := s.loads.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w", domain.ErrLoadAlreadyAccepted, err)
		}
		return fmt.Errorf("insert accepted loads: %w", err)
	}
	return nil
}

// GetSettings reports ErrSettingsNotFound only when the status document
// is missing. The threshold document is operator-owned and may exist on
// its own.
func (s *Store) GetSettings(ctx context.Context) (domain.WatcherSettings, error) {
	var status statusDoc
	err := s.settings.FindOne(ctx, bson.M{"key": statusDocKey}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.WatcherSettings{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("find status settings: %w", err)
	}

	threshold, err := s.threshold(ctx, domain.DefaultDailyThreshold)
	if err != nil {
		return domain.WatcherSettings{}, err
	}
	return domain.WatcherSettings{Enabled: status.Enabled, DailyThreshold: threshold}, nil
}

func (s *Store) threshold(ctx context.Context, fallback int) (int, error) {
	var doc thresholdDoc
	err := s.settings.FindOne(ctx, bson.M{"key": thresholdDocKey}).Decode(&doc)
	switch {
	case err == nil:
		return doc.Threshold, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fallback, nil
	default:
		return 0, fmt.Errorf("find threshold settings: %w", err)
	}
}

// InitSettings inserts whichever of the status and threshold documents is
// missing and leaves existing ones untouched.
func (s *Store) InitSettings(ctx context.Context, defaults domain.WatcherSettings) (domain.WatcherSettings, error) {
	if err := defaults.Validate(); err != nil {
		return domain.WatcherSettings{}, err
	}

	upsert := options.Update().SetUpsert(true)
	status := bson.M{"$setOnInsert": bson.M{"enabled": defaults.Enabled}}
	if _, err := s.settings.UpdateOne(ctx, bson.M{"key": statusDocKey}, status, upsert); err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("init status settings: %w", err)
	}
	threshold := bson.M{"$setOnInsert": bson.M{"threshold": defaults.DailyThreshold}}
	if _, err := s.settings.UpdateOne(ctx, bson.M{"key": thresholdDocKey}, threshold, upsert); err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("init threshold settings: %w", err)
	}

	return s.GetSettings(ctx)
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.WatcherSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	upsert := options.Replace().SetUpsert(true)
	if _, err := s.settings.ReplaceOne(ctx, bson.M{"key": statusDocKey}, statusDoc{Key: statusDocKey, Enabled: settings.Enabled}, upsert); err != nil {
		return fmt.Errorf("save status settings: %w", err)
	}
	if _, err := s.settings.ReplaceOne(ctx, bson.M{"key": thresholdDocKey}, thresholdDoc{Key: thresholdDocKey, Threshold: settings.DailyThreshold}, upsert); err != nil {
		return fmt.Errorf("save threshold settings: %w", err)
	}
	return nil
}

func (s *Store) GetRules(ctx context.Context) (domain.MatchingRules, error) {
	var doc logicDoc
	err := s.settings.FindOne(ctx, bson.M{"key": logicDocKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.MatchingRules{}, domain.ErrRulesNotFound
	}
	if err != nil {
		return domain.MatchingRules{}, fmt.Errorf("find matching rules: %w", err)
	}
	return domain.MatchingRules{
		Destinations: doc.Destinations,
		Consignees:   doc.Consignees,
		ShipModes:    doc.ShipModes,
	}, nil
}

func (s *Store) SaveRules(ctx context.Context, rules domain.MatchingRules) error {
	doc := logicDoc{
		Key:          logicDocKey,
		Destinations: rules.Destinations,
		Consignees:   rules.Consignees,
		ShipModes:    rules.ShipModes,
	}
	if _, err := s.settings.ReplaceOne(ctx, bson.M{"key": logicDocKey}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save matching rules: %w", err)
	}
	return nil
}

func acceptedSince(since time.Time) bson.M {
	return bson.M{
		"status": string(domain.LoadStatusAccept),
		"dt":     bson.M{"$gte": since.UTC()},
	}
}
