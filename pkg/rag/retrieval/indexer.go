package retrieval

import (
	"context"
	"time"

	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/embedding"
	"clinical-intake-be/pkg/utils"

	"github.com/m-mizutani/goerr/v2"
)

// Indexer computes and stores the embedding of one turn. It runs off the response path.
type Indexer struct {
	provider   embedding.EmbeddingProvider
	writer     Writer
	logger     logger.ILogger
	timeout    time.Duration
	dimensions int
	maxInput   int
}

func NewIndexer(provider embedding.EmbeddingProvider, writer Writer, logger logger.ILogger, timeout time.Duration, dimensions, maxInput int) *Indexer {
	return &Indexer{
		provider:   provider,
		writer:     writer,
		logger:     logger,
		timeout:    timeout,
		dimensions: dimensions,
		maxInput:   maxInput,
	}
}

func (i *Indexer) Index(ctx context.Context, doc Document) error {
	text, clipped := utils.TruncateRunes(doc.Content, i.maxInput)
	if clipped {
		i.logger.Debug("INDEXER", "Turn content clipped before embedding", map[string]interface{}{
			"turn_id": doc.TurnID.String(),
			"limit":   i.maxInput,
		})
	}

	embedCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	res, err := i.provider.Generate(embedCtx, text, embedding.TaskRetrievalDocument)
	if err != nil {
		return goerr.Wrap(err, "failed to embed turn", goerr.V("turn_id", doc.TurnID.String()))
	}

	vector := res.Embedding.Values
	if len(vector) == 0 || (i.dimensions > 0 && len(vector) != i.dimensions) {
		return goerr.New("embedding dimension mismatch",
			goerr.V("turn_id", doc.TurnID.String()),
			goerr.V("expected", i.dimensions),
			goerr.V("actual", len(vector)))
	}

	if err := i.writer.Put(ctx, doc, vector); err != nil {
		return goerr.Wrap(err, "failed to store turn embedding", goerr.V("turn_id", doc.TurnID.String()))
	}
	return nil
}
