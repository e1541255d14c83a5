package monitoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ahrav/taskpulse/internal/app/monitoring/dtos"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

// FrameRegistrar accepts frame handlers keyed by message type.
type FrameRegistrar interface {
	RegisterHandler(ctx context.Context, msgType monitoring.MessageType, handler monitoring.FrameHandler)
}

// RegisterFrameHandlers binds every stream message type to the Store merge
// operation that interprets it.
func RegisterFrameHandlers(ctx context.Context, r FrameRegistrar, store *Store) {
	h := frameHandlers{store: store, logger: store.logger}
	r.RegisterHandler(ctx, monitoring.MessageTypeInitialData, h.initialData)
	r.RegisterHandler(ctx, monitoring.MessageTypeStatsUpdate, h.statsUpdate)
	r.RegisterHandler(ctx, monitoring.MessageTypeTasksUpdate, h.tasksUpdate)
	r.RegisterHandler(ctx, monitoring.MessageTypeTaskUpdate, h.taskUpdate)
	r.RegisterHandler(ctx, monitoring.MessageTypeWorkerUpdate, h.workerUpdate)
	r.RegisterHandler(ctx, monitoring.MessageTypeQueueUpdate, h.queueUpdate)
}

type frameHandlers struct {
	store  *Store
	logger *logger.Logger
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", monitoring.ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", monitoring.ErrMalformedPayload, err)
	}
	return nil
}

// decodeEntries decodes each raw entry on its own and converts it with conv.
// Entries that fail to decode are logged and dropped; the count is returned.
func decodeEntries[D, T any](
	ctx context.Context,
	log *logger.Logger,
	kind string,
	raw []json.RawMessage,
	conv func(D) T,
) ([]T, int) {
	out := make([]T, 0, len(raw))
	dropped := 0
	for i, r := range raw {
		var dto D
		if err := json.Unmarshal(r, &dto); err != nil {
			log.Warn(ctx, "dropping undecodable entry", "kind", kind, "index", i, "error", err)
			dropped++
			continue
		}
		out = append(out, conv(dto))
	}
	return out, dropped
}

func (h frameHandlers) initialData(ctx context.Context, data json.RawMessage) error {
	var payload dtos.InitialData
	if err := decode(data, &payload); err != nil {
		return err
	}

	tasks, badTasks := decodeEntries(ctx, h.logger, "task", payload.Tasks, dtos.Task.ToDomain)
	workers, badWorkers := decodeEntries(ctx, h.logger, "worker", payload.Workers, dtos.Worker.ToDomain)
	queues, badQueues := decodeEntries(ctx, h.logger, "queue", payload.Queues, dtos.Queue.ToDomain)

	var stats dtos.Stats
	if len(payload.Stats) > 0 {
		if err := json.Unmarshal(payload.Stats, &stats); err != nil {
			h.logger.Warn(ctx, "ignoring undecodable snapshot stats", "error", err)
			stats = dtos.Stats{}
		}
	}

	skipped := h.store.ApplyInitialSnapshot(ctx, tasks, workers, queues, stats.ToDomain())
	if dropped := badTasks + badWorkers + badQueues + skipped; dropped > 0 {
		h.logger.Warn(ctx, "initial snapshot applied with dropped entries", "dropped", dropped)
	}
	return nil
}

func (h frameHandlers) statsUpdate(ctx context.Context, data json.RawMessage) error {
	var payload dtos.Stats
	if err := decode(data, &payload); err != nil {
		return err
	}
	h.store.ApplyStatsUpdate(ctx, payload.ToDomain())
	return nil
}

func (h frameHandlers) tasksUpdate(ctx context.Context, data json.RawMessage) error {
	var payload dtos.TasksUpdate
	if err := decode(data, &payload); err != nil {
		return err
	}
	tasks, _ := decodeEntries(ctx, h.logger, "task", payload.Tasks, dtos.Task.ToDomain)
	h.store.ApplyTasksUpdate(ctx, tasks)
	return nil
}

func (h frameHandlers) taskUpdate(ctx context.Context, data json.RawMessage) error {
	var payload dtos.Task
	if err := decode(data, &payload); err != nil {
		return err
	}
	return h.store.ApplyTaskUpdate(ctx, payload.ToDomain())
}

func (h frameHandlers) workerUpdate(ctx context.Context, data json.RawMessage) error {
	var payload dtos.Worker
	if err := decode(data, &payload); err != nil {
		return err
	}
	return h.store.ApplyWorkerUpdate(ctx, payload.ToDomain())
}

func (h frameHandlers) queueUpdate(ctx context.Context, data json.RawMessage) error {
	var payload dtos.Queue
	if err := decode(data, &payload); err != nil {
		return err
	}
	return h.store.ApplyQueueUpdate(ctx, payload.ToDomain())
}
