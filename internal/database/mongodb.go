package database

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"answerhub/internal/models"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionKnowledgeBase = "knowledge_base"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if dbName == "" {
		dbName = "answerhub"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// Initialize creates indexes for the knowledge base collection
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	if err := m.createIndexes(ctx, CollectionKnowledgeBase, []mongo.IndexModel{
		{Keys: bson.D{{Key: "question", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create knowledge_base indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized successfully")
	return nil
}

// createIndexes creates indexes for a collection
func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetAllEntries returns every valid knowledge entry in the store.
// Documents with an empty question or a malformed answers payload are
// skipped and logged rather than failing the whole read.
func (m *MongoDB) GetAllEntries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	cursor, err := m.database.Collection(CollectionKnowledgeBase).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.KnowledgeEntry
	skipped := 0
	for cursor.Next(ctx) {
		var doc struct {
			ID       primitive.ObjectID     `bson:"_id,omitempty"`
			Question string                 `bson:"question"`
			Answers  map[string]interface{} `bson:"answers"`
		}
		if err := cursor.Decode(&doc); err != nil {
			skipped++
			slog.Warn("Skipping undecodable knowledge document", "error", err)
			continue
		}
		entry := models.KnowledgeEntry{
			ID:       doc.ID.Hex(),
			Question: doc.Question,
			Answers:  doc.Answers,
		}
		if !entry.Valid() {
			skipped++
			slog.Warn("Skipping knowledge document with empty question", "id", entry.ID)
			continue
		}
		if entry.Answers == nil {
			entry.Answers = map[string]interface{}{}
		}
		entries = append(entries, entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error reading knowledge base: %w", err)
	}

	if skipped > 0 {
		slog.Warn("Knowledge base read completed with skipped documents", "skipped", skipped, "loaded", len(entries))
	}

	return entries, nil
}

// CountEntries returns the number of documents in the knowledge base
func (m *MongoDB) CountEntries(ctx context.Context) (int64, error) {
	return m.database.Collection(CollectionKnowledgeBase).CountDocuments(ctx, bson.M{})
}

// UpsertEntry inserts or replaces a knowledge entry keyed by question
func (m *MongoDB) UpsertEntry(ctx context.Context, entry models.KnowledgeEntry) error {
	if !entry.Valid() {
		return fmt.Errorf("refusing to store entry with empty question")
	}

	// _id is left to Mongo so replacing a seeded document never tries to
	// rewrite its key
	doc := bson.M{
		"question": entry.Question,
		"answers":  entry.Answers,
	}

	opts := options.Replace().SetUpsert(true)
	_, err := m.database.Collection(CollectionKnowledgeBase).ReplaceOne(
		ctx,
		bson.M{"question": entry.Question},
		doc,
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge entry: %w", err)
	}
	return nil
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Client returns the underlying MongoDB client
func (m *MongoDB) Client() *mongo.Client {
	return m.client
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
