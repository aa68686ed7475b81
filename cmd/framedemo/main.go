// Command framedemo wires a broadcaster and a listener through the in-process
// bus: a static base_link -> lidar offset plus a world -> base_link transform
// circling at the publish rate, queried once a second.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/frametrack/tf"
	"github.com/banshee-data/frametrack/tfbus"
)

var (
	rate       = flag.Float64("rate", 100, "Publish rate in Hz")
	runFor     = flag.Duration("duration", 10*time.Second, "How long to run (0 = until interrupted)")
	configPath = flag.String("config", "", "Optional tuning config JSON file")
)

func main() {
	flag.Parse()

	var tuning *tf.TuningConfig
	if *configPath != "" {
		var err error
		if tuning, err = tf.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	bus := tfbus.New(tfbus.Config{SubscriptionDepth: tuning.GetSubscriptionDepth()})
	defer bus.Close()

	listener, err := tf.NewListener(tf.ListenerConfig{
		Bus:  bus,
		Tree: tf.NewTree(tuning.TreeConfig()),
	})
	if err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}
	defer listener.Close()

	broadcaster, err := tf.NewBroadcaster(tf.BroadcasterConfig{Sender: bus})
	if err != nil {
		log.Fatalf("Failed to start broadcaster: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *runFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	// The sensor offset never changes, so it goes out on the static topic.
	err = broadcaster.SendStaticTransform(tf.Record{
		Parent:    "base_link",
		Child:     "lidar",
		Stamp:     time.Now(),
		Transform: tf.Transform{Translation: r3.Vec{X: 0.5}, Rotation: tf.IdentityRotation()},
	})
	if err != nil {
		log.Fatalf("Failed to send static transform: %v", err)
	}

	go publishCircle(ctx, broadcaster, *rate)

	log.Printf("Publishing world -> base_link at %.0f Hz; querying lidar pose once a second", *rate)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("Done (%d records rejected on ingest)", listener.Rejected())
			return
		case <-ticker.C:
			rec, err := listener.WaitForTransform(ctx, "world", "lidar", time.Time{}, 0)
			if err != nil {
				log.Printf("Lookup failed: %v", err)
				continue
			}
			log.Printf("lidar in world: (%.3f, %.3f, %.3f)",
				rec.Translation.X, rec.Translation.Y, rec.Translation.Z)
		}
	}
}

// publishCircle drives base_link around the unit circle in the world frame.
func publishCircle(ctx context.Context, broadcaster *tf.Broadcaster, rateHz float64) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer ticker.Stop()
	theta := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			theta += 0.01
			err := broadcaster.SendTransform(tf.Record{
				Parent: "world",
				Child:  "base_link",
				Stamp:  time.Now(),
				Transform: tf.Transform{
					Translation: r3.Vec{X: math.Sin(theta), Y: math.Cos(theta)},
					Rotation:    tf.IdentityRotation(),
				},
			})
			if err != nil {
				log.Printf("Publish failed: %v", err)
			}
		}
	}
}
