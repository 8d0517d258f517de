package services

import (
	"context"

	"answerhub/internal/database"
	"answerhub/internal/models"
)

// MongoSource serves the knowledge base from the document store. Used by
// deployments that seed entries directly instead of exposing a webhook.
type MongoSource struct {
	db *database.MongoDB
}

func NewMongoSource(db *database.MongoDB) *MongoSource {
	return &MongoSource{db: db}
}

func (s *MongoSource) Name() string { return "mongodb" }

func (s *MongoSource) FetchAll(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.db.GetAllEntries(ctx)
}
