package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

type completionEventReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error)
}

type completionDocumentReader interface {
	ListLatestByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Document, error)
}

// CompletionEvaluator decides whether an event has every required document kind approved.
type CompletionEvaluator struct {
	events    completionEventReader
	documents completionDocumentReader
}

// NewCompletionEvaluator constructs the evaluator.
func NewCompletionEvaluator(events completionEventReader, documents completionDocumentReader) *CompletionEvaluator {
	return &CompletionEvaluator{events: events, documents: documents}
}

// EvaluateEventCompletion reports whether every required kind of the event has an approved latest version.
func (e *CompletionEvaluator) EvaluateEventCompletion(ctx context.Context, eventID string) (bool, error) {
	completion, err := e.InspectEvent(ctx, nil, eventID)
	if err != nil {
		return false, err
	}
	return completion.Complete, nil
}

// InspectEvent returns the per-kind breakdown behind the completion verdict.
func (e *CompletionEvaluator) InspectEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (*models.EventCompletion, error) {
	event, err := e.events.FindByID(ctx, exec, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	completion, err := e.inspect(ctx, exec, event)
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

func (e *CompletionEvaluator) inspect(ctx context.Context, exec sqlx.ExtContext, event *models.Event) (models.EventCompletion, error) {
	docs, err := e.documents.ListLatestByEvent(ctx, exec, event.ID)
	if err != nil {
		return models.EventCompletion{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event documents")
	}
	completion := EvaluateDocuments(docs)
	completion.EventID = event.ID
	completion.Status = event.Status
	return completion, nil
}

// EvaluateDocuments applies the completion rule to the latest, non-deleted documents of one event.
// Versions that are not latest or are deleted are ignored.
func EvaluateDocuments(docs []models.Document) models.EventCompletion {
	completion := models.EventCompletion{Complete: true}
	for _, kind := range models.RequiredDocumentKinds {
		entry := models.KindCompletion{Kind: kind}
		for i := range docs {
			doc := docs[i]
			if doc.Kind != kind || !doc.IsLatestVersion || doc.Status == models.DocumentStatusDeleted {
				continue
			}
			status := doc.Status
			id := doc.ID
			entry.LatestStatus = &status
			entry.LatestVersion = doc.Version
			entry.LatestDocument = &id
			if status == models.DocumentStatusApproved {
				entry.Approved = true
			}
		}
		if entry.LatestStatus == nil {
			completion.MissingKinds = append(completion.MissingKinds, kind)
		}
		if !entry.Approved {
			completion.Complete = false
		}
		completion.Kinds = append(completion.Kinds, entry)
	}
	return completion
}
