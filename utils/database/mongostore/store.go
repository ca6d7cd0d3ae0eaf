// Package mongostore implements the persistence gateway on MongoDB, using the
// same collection and field names as the bot's original document store.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slopsbot/model"
)

const (
	cardsCollection = "cards"
	pinsCollection  = "pins"
	rolesCollection = "roles"
	marksCollection = "marks"
)

// Store is the MongoDB-backed persistence gateway.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB, pings it and ensures the unique indexes the ledgers rely on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.createIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	indexes := map[string]bson.D{
		cardsCollection: {{Key: "role", Value: 1}, {Key: "messageId", Value: 1}},
		pinsCollection:  {{Key: "messageId", Value: 1}},
		rolesCollection: {{Key: "user", Value: 1}, {Key: "server", Value: 1}},
		marksCollection: {{Key: "name", Value: 1}},
	}
	for collection, keys := range indexes {
		index := mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
		if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, index); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", collection, err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// insertIfAbsent relies on the collection's unique index to make the insert conditional.
func (s *Store) insertIfAbsent(ctx context.Context, collection string, doc interface{}) (bool, error) {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ClaimCard(ctx context.Context, card model.CardRecord) (bool, error) {
	claimed, err := s.insertIfAbsent(ctx, cardsCollection, card)
	if err != nil {
		return false, fmt.Errorf("failed to insert card for message %s: %w", card.MessageID, err)
	}
	return claimed, nil
}

func (s *Store) CardExists(ctx context.Context, role, messageID string) (bool, error) {
	n, err := s.db.Collection(cardsCollection).CountDocuments(ctx, bson.M{"role": role, "messageId": messageID})
	if err != nil {
		return false, fmt.Errorf("failed to look up card for message %s: %w", messageID, err)
	}
	return n > 0, nil
}

func (s *Store) CountCards(ctx context.Context, guildID, role string) ([]model.UserCount, error) {
	counts, err := s.countByUser(ctx, cardsCollection, bson.M{"server": guildID, "role": role})
	if err != nil {
		return nil, fmt.Errorf("failed to count cards for guild %s: %w", guildID, err)
	}
	return counts, nil
}

func (s *Store) countByUser(ctx context.Context, collection string, match bson.M) ([]model.UserCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$user", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var counts []model.UserCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) FindRoleGrant(ctx context.Context, userID, guildID string) (*model.RoleGrant, error) {
	var grant model.RoleGrant
	err := s.db.Collection(rolesCollection).FindOne(ctx, bson.M{"user": userID, "server": guildID}).Decode(&grant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role grant for user %s in guild %s: %w", userID, guildID, err)
	}
	return &grant, nil
}

func (s *Store) InsertRoleGrant(ctx context.Context, grant model.RoleGrant) error {
	if _, err := s.db.Collection(rolesCollection).InsertOne(ctx, grant); err != nil {
		return fmt.Errorf("failed to insert role grant for user %s: %w", grant.UserID, err)
	}
	return nil
}

func (s *Store) UpdateRoleGrant(ctx context.Context, grant model.RoleGrant) error {
	filter := bson.M{"user": grant.UserID, "server": grant.GuildID}
	update := bson.M{"$set": bson.M{"role": grant.Role, "displayName": grant.DisplayName, "timestamp": grant.Timestamp}}
	result, err := s.db.Collection(rolesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update role grant for user %s: %w", grant.UserID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no role grant found for user %s in guild %s", grant.UserID, grant.GuildID)
	}
	return nil
}

func (s *Store) ListRoleGrants(ctx context.Context) ([]model.RoleGrant, error) {
	cursor, err := s.db.Collection(rolesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list role grants: %w", err)
	}
	var grants []model.RoleGrant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, fmt.Errorf("failed to decode role grants: %w", err)
	}
	return grants, nil
}

func (s *Store) DeleteRoleGrant(ctx context.Context, grant model.RoleGrant) (bool, error) {
	filter := bson.M{"role": grant.Role, "user": grant.UserID, "server": grant.GuildID, "timestamp": grant.Timestamp}
	result, err := s.db.Collection(rolesCollection).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete role grant for user %s in guild %s: %w", grant.UserID, grant.GuildID, err)
	}
	return result.DeletedCount == 1, nil
}

func (s *Store) ClaimPin(ctx context.Context, pin model.PinRecord) (bool, error) {
	pin.Pinned = false
	claimed, err := s.insertIfAbsent(ctx, pinsCollection, pin)
	if err != nil {
		return false, fmt.Errorf("failed to insert pin for message %s: %w", pin.MessageID, err)
	}
	return claimed, nil
}

func (s *Store) ConfirmPin(ctx context.Context, messageID string) error {
	update := bson.M{"$set": bson.M{"pinned": true}}
	result, err := s.db.Collection(pinsCollection).UpdateOne(ctx, bson.M{"messageId": messageID}, update)
	if err != nil {
		return fmt.Errorf("failed to confirm pin for message %s: %w", messageID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no pin claim found for message %s", messageID)
	}
	return nil
}

func (s *Store) ReleasePin(ctx context.Context, messageID string) error {
	if _, err := s.db.Collection(pinsCollection).DeleteOne(ctx, bson.M{"messageId": messageID}); err != nil {
		return fmt.Errorf("failed to release pin for message %s: %w", messageID, err)
	}
	return nil
}

func (s *Store) CountPins(ctx context.Context, guildID string) ([]model.UserCount, error) {
	counts, err := s.countByUser(ctx, pinsCollection, bson.M{"server": guildID, "pinned": true})
	if err != nil {
		return nil, fmt.Errorf("failed to count pins for guild %s: %w", guildID, err)
	}
	return counts, nil
}

type mark struct {
	Name  string `bson:"name"`
	Value string `bson:"value"`
}

func (s *Store) GetMark(ctx context.Context, name string) (string, bool, error) {
	var m mark
	err := s.db.Collection(marksCollection).FindOne(ctx, bson.M{"name": name}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get mark %s: %w", name, err)
	}
	return m.Value, true, nil
}

func (s *Store) SetMark(ctx context.Context, name, value string) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(marksCollection).UpdateOne(ctx, bson.M{"name": name}, bson.M{"$set": bson.M{"value": value}}, opts)
	if err != nil {
		return fmt.Errorf("failed to set mark %s: %w", name, err)
	}
	return nil
}

var _ model.Store = (*Store)(nil)
