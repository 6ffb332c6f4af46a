// Package sweep implements the Placement Center's expiration loops (spec
// C4): periodic sweeps that clear expired retained messages and delete
// expired last-will records. Each loop is modeled directly on the teacher's
// MessageQueue.Sweep/StartSweep in internal/store/messagequeue.go, adapted
// from a best-effort 5-minute bucket sweep to the spec's mandatory 1-second
// seek/valid/next cluster-prefix scan, and from "delete expired" to the two
// distinct retained-message/last-will policies in spec §4.4.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/store"
)

// interval between sweep passes, fixed per spec §4.4.
const interval = 1 * time.Second

// Sweeper runs the retained-message and last-will expiration loops for one
// cluster. Both loops are independent and cancellable at their sleep point.
type Sweeper struct {
	clusterName string
	metaStore   *store.MetadataStore
	now         func() int64
}

// New creates a Sweeper for clusterName over metaStore. now defaults to the
// wall clock; tests may override it.
func New(clusterName string, metaStore *store.MetadataStore) *Sweeper {
	return &Sweeper{
		clusterName: clusterName,
		metaStore:   metaStore,
		now:         func() int64 { return time.Now().Unix() },
	}
}

// RunRetainMessageLoop runs the retained-message expiration loop until ctx
// is cancelled. It is meant to be launched in its own goroutine.
func (s *Sweeper) RunRetainMessageLoop(ctx context.Context) {
	for {
		s.retainMessagePass()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// RunLastWillLoop runs the last-will expiration loop until ctx is cancelled.
// It is meant to be launched in its own goroutine.
func (s *Sweeper) RunLastWillLoop(ctx context.Context) {
	for {
		s.lastWillPass()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// retainMessagePass performs one full scan of the cluster's topic prefix,
// clearing any retained message whose expiry has elapsed. Per-record decode
// failures are logged and skipped; the sweeper does not abort the pass.
//
// The expiry check uses the envelope's create_time, not any timestamp
// carried by the retained message itself -- this is the published contract
// (spec §4.4). Clearing a retained message re-saves the topic, which
// refreshes create_time for the next pass.
func (s *Sweeper) retainMessagePass() {
	records, err := s.metaStore.Topics.ScanWithEnvelope(s.clusterName)
	if err != nil {
		slog.Error("sweep: retained-message scan failed", "cluster", s.clusterName, "error", err)
		return
	}

	now := s.now()
	for _, rec := range records {
		topic := rec.Value
		if !topic.HasRetainMessage() {
			continue
		}
		if now < rec.CreateTime+*topic.RetainMessageExpiredAt {
			continue
		}
		topic.ClearRetainMessage()
		if err := s.metaStore.Topics.Save(s.clusterName, rec.Name, topic); err != nil {
			slog.Error("sweep: failed to clear retained message", "cluster", s.clusterName, "topic", rec.Name, "error", err)
		}
	}
}

// lastWillPass performs one full scan of the cluster's last-will prefix,
// deleting any last-will record whose expiry has elapsed. Expiry defaults
// to metadata.DefaultLastWillExpirySeconds when the record carries no
// message_expiry_interval.
func (s *Sweeper) lastWillPass() {
	records, err := s.metaStore.LastWills.ScanWithEnvelope(s.clusterName)
	if err != nil {
		slog.Error("sweep: last-will scan failed", "cluster", s.clusterName, "error", err)
		return
	}

	now := s.now()
	for _, rec := range records {
		expiry := expirySeconds(rec.Value)
		if now < rec.CreateTime+expiry {
			continue
		}
		if err := s.metaStore.LastWills.DeleteLastWillMessage(s.clusterName, rec.Value.ClientID); err != nil {
			slog.Error("sweep: failed to delete last will", "cluster", s.clusterName, "client_id", rec.Value.ClientID, "error", err)
		}
	}
}

func expirySeconds(lw metadata.LastWill) int64 {
	return lw.ExpirySeconds()
}
