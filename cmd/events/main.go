// cmd/events/main.go is an asynchronous recorder that pops lobby lifecycle
// events from the Redis queue and persists them to PostgreSQL, giving the
// rest of the system a durable walk-history feed without putting a database
// write on the session request path.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ilushkaDushni/walkmap-sub001/internal/cache"
	"github.com/ilushkaDushni/walkmap-sub001/internal/database"
)

// EventRecorder drains the lobby event queue in batches.
type EventRecorder struct {
	redisClient *redis.Client
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []cache.LobbyEventRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewEventRecorder constructs a recorder from environment variables or
// defaults.
func NewEventRecorder() *EventRecorder {
	batchSize := getEnvInt("EVENTS_BATCH_SIZE", 20)
	flushMs := getEnvInt("EVENTS_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &EventRecorder{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]cache.LobbyEventRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and consumes the queue until stopped.
func (er *EventRecorder) Run() {
	database.ConnectDB()

	go er.readQueueLoop()

	log.Println("walkmap-events recorder started.")
	<-er.ctx.Done()
	er.flushBatch()
	log.Println("walkmap-events recorder shut down.")
}

func (er *EventRecorder) readQueueLoop() {
	ticker := time.NewTicker(er.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("WALK_EVENTS_QUEUE_NAME", cache.DefaultQueueName)

	for {
		select {
		case <-er.ctx.Done():
			return

		case <-ticker.C:
			er.flushBatch()

		default:
			// BLPop with a short timeout so shutdown is handled promptly.
			res, err := er.redisClient.BLPop(er.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if er.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record cache.LobbyEventRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid lobby event record: %v\n", err)
				continue
			}
			er.append(record)
		}
	}
}

func (er *EventRecorder) append(record cache.LobbyEventRecord) {
	er.batchMu.Lock()
	defer er.batchMu.Unlock()

	er.batch = append(er.batch, record)
	if len(er.batch) >= er.batchSize {
		er.flushLocked()
	}
}

func (er *EventRecorder) flushBatch() {
	er.batchMu.Lock()
	defer er.batchMu.Unlock()
	er.flushLocked()
}

// flushLocked writes the pending batch in one transaction. Assumes batchMu
// is held.
func (er *EventRecorder) flushLocked() {
	if len(er.batch) == 0 {
		return
	}
	pending := make([]cache.LobbyEventRecord, len(er.batch))
	copy(pending, er.batch)
	er.batch = er.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range pending {
			if err := insertLobbyEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertLobbyEventTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush events: %v\n", err)
	} else {
		log.Printf("Flushed %d lobby events to DB.\n", len(pending))
	}
}

func insertLobbyEventTx(ctx context.Context, tx pgx.Tx, rec cache.LobbyEventRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO lobby_events (
		lobby_id, route_id, event_type, actor_user_id, payload, occurred_at
	) VALUES ($1, $2, $3, $4, $5, to_timestamp($6 / 1000.0))
	`
	_, err = tx.Exec(ctx, q,
		rec.LobbyID, rec.RouteID, rec.EventType, rec.ActorID, payload, rec.Timestamp,
	)
	return err
}

// Stop gracefully stops the recorder.
func (er *EventRecorder) Stop() {
	er.cancelFn()
}

func main() {
	er := NewEventRecorder()
	go er.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	er.Stop()
	log.Println("Event recorder shutdown complete.")
}

func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
