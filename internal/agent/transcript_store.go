package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const transcriptTTL = 24 * time.Hour

// TranscriptStore mirrors session turns into Redis so transcripts survive for
// inspection and the history endpoint. The authoritative per-turn state stays
// in the in-process SessionStore.
type TranscriptStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewTranscriptStore(client *redis.Client, tracer trace.Tracer) *TranscriptStore {
	if client == nil {
		panic("agent: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("assigny.internal.agent.transcript")
	}
	return &TranscriptStore{
		redis:  client,
		tracer: tracer,
	}
}

// Append pushes one turn onto the session's transcript list and refreshes the TTL.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	ctx, span := s.tracer.Start(ctx, "agent.transcript_append")
	defer span.End()

	data, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("agent: failed to marshal turn: %w", err)
	}

	key := transcriptKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("agent: failed to persist turn: %w", err)
	}
	return nil
}

// List returns up to limit trailing turns in order. A session with no
// transcript yields an empty slice, not an error.
func (s *TranscriptStore) List(ctx context.Context, sessionID string, limit int64) ([]Turn, error) {
	ctx, span := s.tracer.Start(ctx, "agent.transcript_list")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	raw, err := s.redis.LRange(ctx, transcriptKey(sessionID), -limit, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []Turn{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("agent: failed to load transcript: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("agent: failed to decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s", sessionID)
}
