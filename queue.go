/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package leadflow

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/leadflowhq/leadflow/config"
	redis_db "github.com/leadflowhq/leadflow/internal/redis-db"
)

const EventRetryQueue = "new:event_retry"

// Queue handles deferred reprocessing of webhook events whose normalization
// failed at ingest time.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

type eventRetryPayload struct {
	EventID string `json:"event_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueEventRetry enqueues a failed event for reprocessing. The task ID is
// the event ID so the same event is never queued twice concurrently.
func (q *Queue) queueEventRetry(ctx context.Context, eventID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(eventRetryPayload{EventID: eventID})
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(eventID),
		asynq.Queue(EventRetryQueue),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
		asynq.ProcessIn(30 * time.Second),
	}
	task := asynq.NewTask(EventRetryQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued event retry: %+v", eventID)
	return nil
}

// RequeueUnprocessedEvents feeds stored unprocessed events back onto the
// retry queue. Ingest-time enqueues can be lost when redis is unreachable,
// so the worker sweeps for stranded events periodically. Task IDs key on the
// event ID, so events already queued are absorbed.
func (l *Leadflow) RequeueUnprocessedEvents(ctx context.Context, limit int) (int, error) {
	if l.queue == nil {
		return 0, nil
	}

	events, err := l.datasource.GetUnprocessedWebhookEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, evt := range events {
		if err := l.queue.queueEventRetry(ctx, evt.EventID); err != nil {
			log.Printf("failed to requeue event %s: %v", evt.EventID, err)
			continue
		}
		requeued++
	}
	return requeued, nil
}

// ProcessEventRetry is the asynq handler for the event retry queue. A
// returned error puts the task back with backoff until MaxRetry runs out.
func (l *Leadflow) ProcessEventRetry(ctx context.Context, task *asynq.Task) error {
	var payload eventRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	return l.RetryEvent(ctx, payload.EventID)
}
