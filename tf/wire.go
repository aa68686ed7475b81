package tf

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/frametrack/tfbus"
)

// RecordFromMessage converts a transport message into a core record. The
// transport stamp is unix nanoseconds; zero maps to the epoch, not the
// "latest" query sentinel, so a producer can legitimately publish an
// epoch-stamped record.
func RecordFromMessage(msg tfbus.TransformMessage) Record {
	return Record{
		Parent: msg.ParentFrame,
		Child:  msg.ChildFrame,
		Stamp:  time.Unix(0, msg.StampNanos),
		Transform: Transform{
			Translation: r3.Vec{X: msg.Translation[0], Y: msg.Translation[1], Z: msg.Translation[2]},
			Rotation:    Rotation{X: msg.Rotation[0], Y: msg.Rotation[1], Z: msg.Rotation[2], W: msg.Rotation[3]},
		},
	}
}

// MessageFromRecord converts a core record into its transport shape.
func MessageFromRecord(rec Record) tfbus.TransformMessage {
	return tfbus.TransformMessage{
		ParentFrame: rec.Parent,
		ChildFrame:  rec.Child,
		StampNanos:  rec.Stamp.UnixNano(),
		Translation: [3]float64{rec.Translation.X, rec.Translation.Y, rec.Translation.Z},
		Rotation:    [4]float64{rec.Rotation.X, rec.Rotation.Y, rec.Rotation.Z, rec.Rotation.W},
	}
}
