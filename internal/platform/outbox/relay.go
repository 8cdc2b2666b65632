package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fieldlabs/profile-service/internal/platform/log"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profile_outbox_events_total", Help: "published outbox events",
	}, []string{"event"})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "profile_outbox_publish_errors_total", Help: "outbox publish errors",
	})
	oldestAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "profile_outbox_oldest_age_seconds", Help: "oldest unpublished event age",
	})
)

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Relay drains the outbox table and hands events to the publisher. Rows are
// claimed with FOR UPDATE SKIP LOCKED so several replicas can run at once;
// failed publishes back off exponentially via available_at.
type Relay struct {
	pool   *pgxpool.Pool
	pub    Publisher
	ticker *time.Ticker
	batch  int
	log    *log.Logger
}

func New(pool *pgxpool.Pool, pub Publisher, interval time.Duration, batch int, logger *log.Logger) *Relay {
	return &Relay{
		pool:   pool,
		pub:    pub,
		ticker: time.NewTicker(interval),
		batch:  batch,
		log:    logger,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.ticker.C:
			if err := r.drain(ctx); err != nil {
				r.log.Error("outbox drain error", log.Err(err))
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	var oldest time.Time
	_ = r.pool.QueryRow(ctx, `SELECT COALESCE(MIN(created_at), now()) FROM outbox WHERE published_at IS NULL`).Scan(&oldest)
	oldestAge.Set(time.Since(oldest).Seconds())

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.log.Error("failed to rollback tx", log.Err(err))
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, payload, created_at
		FROM outbox
		WHERE published_at IS NULL AND available_at <= now()
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, r.batch)
	if err != nil {
		return err
	}
	defer rows.Close()

	type picked struct {
		id  int64
		key string
		val []byte
		typ string
	}
	var batch []picked

	for rows.Next() {
		var (
			id           int64
			etype        string
			aggType      string
			aggID        string
			payloadBytes []byte
			createdAt    time.Time
		)
		if err := rows.Scan(&id, &etype, &aggType, &aggID, &payloadBytes, &createdAt); err != nil {
			return err
		}
		env, _ := json.Marshal(map[string]any{
			"type":           etype,
			"aggregate_type": aggType,
			"aggregate_id":   aggID,
			"payload":        json.RawMessage(payloadBytes),
			"created_at":     createdAt,
		})
		batch = append(batch, picked{id: id, key: aggID, val: env, typ: etype})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return tx.Commit(ctx)
	}

	for _, m := range batch {
		if err := r.pub.Publish(ctx, m.key, m.val); err != nil {
			publishErrors.Inc()
			r.log.Warn("outbox publish failed", log.Str("event", m.typ), log.Err(err))
			_, _ = tx.Exec(ctx, `UPDATE outbox
				SET fail_count = fail_count + 1,
				    last_error = $2,
				    available_at = now() + make_interval(secs => LEAST(60, POW(2, fail_count)))
				WHERE id = $1`, m.id, err.Error())
			continue
		}
		publishedTotal.WithLabelValues(m.typ).Inc()
		if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = now() WHERE id = $1`, m.id); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
