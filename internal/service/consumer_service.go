package service

import (
	"context"
	"encoding/json"
	"sync"

	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/rag/retrieval"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	Wait()
}

// DocumentIndexer embeds and stores one turn.
type DocumentIndexer interface {
	Index(ctx context.Context, doc retrieval.Document) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	indexer    DocumentIndexer
	workers    int
	logger     logger.ILogger
	wg         sync.WaitGroup
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	indexer DocumentIndexer,
	workers int,
	log logger.ILogger,
) IConsumerService {
	if workers <= 0 {
		workers = 1
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		indexer:    indexer,
		workers:    workers,
		logger:     log,
	}
}

// Consume starts the worker pool. Workers stop when ctx is cancelled and the subscription closes.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	for i := 0; i < cs.workers; i++ {
		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()
			for msg := range messages {
				cs.processMessage(msg)
			}
		}()
	}

	cs.logger.Info("EMBEDDING", "Embedding consumer started", map[string]interface{}{
		"topic":   cs.topicName,
		"workers": cs.workers,
	})
	return nil
}

func (cs *consumerService) Wait() {
	cs.wg.Wait()
}

// processMessage acks before doing any work: a failed embedding is never redelivered.
func (cs *consumerService) processMessage(msg *message.Message) {
	msg.Ack()

	var doc retrieval.Document
	if err := json.Unmarshal(msg.Payload, &doc); err != nil {
		cs.logger.Error("EMBEDDING", "Failed to unmarshal embedding job", logger.ErrorDetails(err, map[string]interface{}{
			"message_id": msg.UUID,
		}))
		return
	}

	if err := cs.indexer.Index(context.Background(), doc); err != nil {
		cs.logger.Warn("EMBEDDING", "Turn embedding skipped", logger.ErrorDetails(err, map[string]interface{}{
			"turn_id": doc.TurnID.String(),
		}))
		return
	}

	cs.logger.Debug("EMBEDDING", "Turn embedded", map[string]interface{}{
		"turn_id": doc.TurnID.String(),
	})
}
