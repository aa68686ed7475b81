package tf

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

func validRecord() Record {
	return Record{
		Parent:    "world",
		Child:     "base_link",
		Stamp:     time.Unix(100, 0),
		Transform: Transform{Translation: r3.Vec{X: 1}, Rotation: IdentityRotation()},
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{"valid", func(r *Record) {}, false},
		{"missing parent", func(r *Record) { r.Parent = "" }, true},
		{"missing child", func(r *Record) { r.Child = "" }, true},
		{"self parent", func(r *Record) { r.Parent = r.Child }, true},
		{"non-unit rotation", func(r *Record) { r.Rotation = Rotation{W: 2} }, true},
		{"nan translation", func(r *Record) { r.Translation.X = math.NaN() }, true},
		{"inf rotation", func(r *Record) { r.Rotation.X = math.Inf(1) }, true},
		{"slightly off norm within tolerance", func(r *Record) { r.Rotation = Rotation{W: 1 + 1e-4} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate(0)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Errorf("Validate() = %v, want ErrInvalidRecord", err)
				}
			} else if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestRecordInverse(t *testing.T) {
	rec := validRecord()
	inv := rec.Inverse()

	if inv.Parent != rec.Child || inv.Child != rec.Parent {
		t.Errorf("Inverse() frames = %s -> %s, want %s -> %s", inv.Parent, inv.Child, rec.Child, rec.Parent)
	}
	if !inv.Stamp.Equal(rec.Stamp) {
		t.Errorf("Inverse() stamp = %v, want %v", inv.Stamp, rec.Stamp)
	}
	round := rec.Transform.Mul(inv.Transform)
	vecNear(t, round.Translation, r3.Vec{}, floatTolerance)
}
