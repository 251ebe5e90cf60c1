package projection

import (
	"math"
	"sync"
	"testing"
)

func TestLockFreezesOrientation(t *testing.T) {
	o := NewOrientation()
	o.SetHeading(10)
	o.SetPitch(-60)
	o.SetRoll(5)

	o.SetLocked(true)
	if o.SetHeading(45) {
		t.Error("SetHeading applied while locked")
	}
	if o.SetPitch(-10) || o.SetRoll(1) {
		t.Error("pitch/roll applied while locked")
	}

	if got := o.Heading(); got != 10 {
		t.Errorf("Heading() = %v, want 10", got)
	}
	if got := o.Pitch(); got != -30 {
		t.Errorf("Pitch() = %v, want -30", got)
	}
	if got := o.Roll(); got != 5 {
		t.Errorf("Roll() = %v, want 5", got)
	}

	o.SetLocked(false)
	o.SetHeading(45)
	if got := o.Heading(); got != 45 {
		t.Errorf("Heading() after unlock = %v, want 45", got)
	}
}

func TestSetPitchTransform(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{-90, 0},
		{0, -90},
		{-180, 90},
		{-45, -45},
		{10, 90},   // -100 reflects to 90
		{-200, 90}, // 110 reflects to 90
		{-135, 45},
	}

	for _, tt := range tests {
		o := NewOrientation()
		o.SetPitch(tt.raw)
		if got := o.Pitch(); got != tt.want {
			t.Errorf("SetPitch(%v): Pitch() = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSetRollFilter(t *testing.T) {
	o := NewOrientation()

	if !o.SetRoll(12) {
		t.Fatal("SetRoll(12) rejected")
	}
	for _, raw := range []float64{20, -20, 35, -90} {
		if o.SetRoll(raw) {
			t.Errorf("SetRoll(%v) accepted", raw)
		}
	}
	if got := o.Roll(); got != 12 {
		t.Errorf("Roll() = %v, want 12", got)
	}
	if !o.SetRoll(-19.9) || o.Roll() != -19.9 {
		t.Errorf("SetRoll(-19.9) not applied, Roll() = %v", o.Roll())
	}
}

func TestCenterInRadians(t *testing.T) {
	o := NewOrientation()
	o.SetHeading(180)
	o.SetPitch(-135)

	c := o.Center()
	if math.Abs(c.Heading-math.Pi) > 1e-12 {
		t.Errorf("Center().Heading = %v, want pi", c.Heading)
	}
	if math.Abs(c.Pitch-math.Pi/4) > 1e-12 {
		t.Errorf("Center().Pitch = %v, want pi/4", c.Pitch)
	}
}

func TestOrientationConcurrentAccess(t *testing.T) {
	o := NewOrientation()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			o.SetHeading(float64(i))
			o.SetPitch(-float64(i % 180))
			o.SetLocked(i%7 == 0)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s := o.State()
				if math.IsNaN(s.Heading) || math.IsNaN(s.Pitch) {
					t.Error("torn read")
					return
				}
			}
		}()
	}
	wg.Wait()
}
