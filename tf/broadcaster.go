package tf

import (
	"errors"

	"github.com/banshee-data/frametrack/tfbus"
)

// Sender is the outbound half of the transport boundary. *tfbus.Bus
// satisfies it; remote transports supply their own implementation.
type Sender interface {
	Publish(topic string, batch tfbus.Batch) error
}

// BroadcasterConfig configures a Broadcaster. Sender is required.
type BroadcasterConfig struct {
	Sender Sender

	// DynamicTopic and StaticTopic name the published topics. Default to
	// tfbus.TopicDynamic and tfbus.TopicStatic.
	DynamicTopic string
	StaticTopic  string

	// RotationTolerance bounds rotation norms on outbound records. Defaults
	// to DefaultRotationTolerance.
	RotationTolerance float64
}

// Broadcaster publishes application transforms to the transport layer. It
// validates records with the same rules the ingestion path applies and holds
// no state beyond its sender reference.
type Broadcaster struct {
	sender       Sender
	dynamicTopic string
	staticTopic  string
	tolerance    float64
}

// NewBroadcaster creates a broadcaster over the given sender.
func NewBroadcaster(cfg BroadcasterConfig) (*Broadcaster, error) {
	if cfg.Sender == nil {
		return nil, errors.New("tf: broadcaster requires a sender")
	}
	if cfg.DynamicTopic == "" {
		cfg.DynamicTopic = tfbus.TopicDynamic
	}
	if cfg.StaticTopic == "" {
		cfg.StaticTopic = tfbus.TopicStatic
	}
	if cfg.RotationTolerance <= 0 {
		cfg.RotationTolerance = DefaultRotationTolerance
	}
	return &Broadcaster{
		sender:       cfg.Sender,
		dynamicTopic: cfg.DynamicTopic,
		staticTopic:  cfg.StaticTopic,
		tolerance:    cfg.RotationTolerance,
	}, nil
}

// SendTransform publishes one dynamic transform.
func (b *Broadcaster) SendTransform(rec Record) error {
	return b.SendTransforms([]Record{rec}, false)
}

// SendStaticTransform publishes one static transform; the transport retains
// it for late subscribers.
func (b *Broadcaster) SendStaticTransform(rec Record) error {
	return b.SendTransforms([]Record{rec}, true)
}

// SendTransforms validates and publishes a batch. Invalid records are
// reported and withheld while the valid remainder is still sent; the
// returned error joins every per-record failure with any publish failure.
func (b *Broadcaster) SendTransforms(recs []Record, static bool) error {
	batch := make(tfbus.Batch, 0, len(recs))
	var errs []error
	for _, rec := range recs {
		if err := rec.Validate(b.tolerance); err != nil {
			errs = append(errs, err)
			continue
		}
		batch = append(batch, MessageFromRecord(rec))
	}
	if len(batch) > 0 {
		topic := b.dynamicTopic
		if static {
			topic = b.staticTopic
		}
		if err := b.sender.Publish(topic, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
