package service

import (
	"context"
	"encoding/json"

	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/rag/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/m-mizutani/goerr/v2"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	publisher message.Publisher
	topicName string
}

func NewPublisherService(publisher message.Publisher, topicName string) IPublisherService {
	return &publisherService{
		publisher: publisher,
		topicName: topicName,
	}
}

func (p *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(context.WithoutCancel(ctx))
	if err := p.publisher.Publish(p.topicName, msg); err != nil {
		return goerr.Wrap(err, "failed to publish message", goerr.V("topic", p.topicName))
	}
	return nil
}

// EmbeddingQueue hands persisted turns to the embedding consumer. Failures are logged and dropped.
type EmbeddingQueue struct {
	publisher IPublisherService
	logger    logger.ILogger
}

func NewEmbeddingQueue(publisher IPublisherService, log logger.ILogger) *EmbeddingQueue {
	return &EmbeddingQueue{
		publisher: publisher,
		logger:    log,
	}
}

func (q *EmbeddingQueue) Enqueue(ctx context.Context, doc retrieval.Document) {
	payload, err := json.Marshal(doc)
	if err == nil {
		err = q.publisher.Publish(ctx, payload)
	}
	if err != nil {
		q.logger.Warn("EMBEDDING", "Failed to queue turn for embedding", logger.ErrorDetails(err, map[string]interface{}{
			"turn_id": doc.TurnID.String(),
		}))
	}
}
