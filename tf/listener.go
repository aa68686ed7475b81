package tf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/frametrack/internal/monitoring"
	"github.com/banshee-data/frametrack/internal/timeutil"
	"github.com/banshee-data/frametrack/tfbus"
)

// DefaultWaitPollInterval is how often WaitForTransform retries its lookup.
const DefaultWaitPollInterval = 10 * time.Millisecond

// ListenerConfig configures a Listener. Bus is required; everything else has
// a default.
type ListenerConfig struct {
	// Bus delivers transform batches.
	Bus *tfbus.Bus

	// Tree receives the ingested records. A fresh tree with default tuning
	// is created when nil.
	Tree *Tree

	// DynamicTopic and StaticTopic name the subscribed topics. Default to
	// tfbus.TopicDynamic and tfbus.TopicStatic.
	DynamicTopic string
	StaticTopic  string

	// Clock drives WaitForTransform polling. Defaults to the real clock.
	Clock timeutil.Clock
}

// Listener is the ingestion side of the core: it subscribes to the dynamic
// and static transform topics and inserts every delivered record into its
// tree. Malformed or conflicting records are reported and skipped without
// aborting the rest of their batch.
type Listener struct {
	tree  *Tree
	clock timeutil.Clock

	dynamicSub *tfbus.Subscription
	staticSub  *tfbus.Subscription

	rejected  atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewListener subscribes to the configured topics and starts ingesting.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Bus == nil {
		return nil, errors.New("tf: listener requires a bus")
	}
	if cfg.Tree == nil {
		cfg.Tree = NewTree(TreeConfig{})
	}
	if cfg.DynamicTopic == "" {
		cfg.DynamicTopic = tfbus.TopicDynamic
	}
	if cfg.StaticTopic == "" {
		cfg.StaticTopic = tfbus.TopicStatic
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	l := &Listener{
		tree:       cfg.Tree,
		clock:      cfg.Clock,
		dynamicSub: cfg.Bus.Subscribe(cfg.DynamicTopic),
		staticSub:  cfg.Bus.Subscribe(cfg.StaticTopic),
		done:       make(chan struct{}),
	}
	l.wg.Add(2)
	go l.run(l.dynamicSub, false)
	go l.run(l.staticSub, true)
	return l, nil
}

func (l *Listener) run(sub *tfbus.Subscription, static bool) {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case batch, ok := <-sub.C():
			if !ok {
				return
			}
			l.HandleTransforms(batch, static)
		}
	}
}

// HandleTransforms ingests one batch. Each record failing validation or
// insertion is logged and counted; the remainder of the batch still lands.
func (l *Listener) HandleTransforms(batch tfbus.Batch, static bool) {
	for _, msg := range batch {
		rec := RecordFromMessage(msg)
		if err := l.tree.SetTransform(rec, static); err != nil {
			l.rejected.Add(1)
			monitoring.Logf("tf: dropping transform %s -> %s: %v", msg.ParentFrame, msg.ChildFrame, err)
		}
	}
}

// Tree returns the tree the listener feeds.
func (l *Listener) Tree() *Tree { return l.tree }

// Rejected returns how many records have been dropped on ingestion.
func (l *Listener) Rejected() uint64 { return l.rejected.Load() }

// LookupTransform resolves the pose of `to` in `from` coordinates at the
// given time. See Tree.LookupTransform.
func (l *Listener) LookupTransform(from, to string, at time.Time) (Record, error) {
	return l.tree.LookupTransform(from, to, at)
}

// LookupTransformFull resolves frames observed at two different times through
// a fixed bridging frame. See Tree.LookupTransformFull.
func (l *Listener) LookupTransformFull(from string, fromTime time.Time, to string, toTime time.Time, fixed string) (Record, error) {
	return l.tree.LookupTransformFull(from, fromTime, to, toTime, fixed)
}

// CanTransform reports whether a lookup would currently succeed.
func (l *Listener) CanTransform(from, to string, at time.Time) bool {
	return l.tree.CanTransform(from, to, at)
}

// WaitForTransform retries LookupTransform every poll interval until it
// succeeds, the context ends, or the lookup fails for a reason retrying
// cannot fix. The core itself never blocks on missing data; this is the
// retry loop built on top of it for callers that want arrival semantics.
func (l *Listener) WaitForTransform(ctx context.Context, from, to string, at time.Time, poll time.Duration) (Record, error) {
	if poll <= 0 {
		poll = DefaultWaitPollInterval
	}
	ticker := l.clock.NewTicker(poll)
	defer ticker.Stop()

	for {
		rec, err := l.tree.LookupTransform(from, to, at)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNoData) && !errors.Is(err, ErrExtrapolation) && !errors.Is(err, ErrConnectivity) {
			return Record{}, err
		}
		select {
		case <-ctx.Done():
			return Record{}, fmt.Errorf("tf: waiting for %s -> %s: %w (last lookup: %v)", from, to, ctx.Err(), err)
		case <-ticker.C():
		}
	}
}

// Close cancels the subscriptions and waits for the ingest goroutines to
// drain.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.dynamicSub.Cancel()
		l.staticSub.Cancel()
	})
	l.wg.Wait()
}
