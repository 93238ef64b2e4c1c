package gyro

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestIntegratorFirstCallSeeds(t *testing.T) {
	i := NewIntegrator(0)
	flushed, delta, window := i.Put(5000, Vector3{X: 100, Y: 100, Z: 100})
	test.That(t, flushed, test.ShouldBeFalse)
	test.That(t, delta, test.ShouldResemble, Vector3{})
	test.That(t, window, test.ShouldEqual, time.Duration(0))
}

func TestIntegratorFlushesOnInterval(t *testing.T) {
	i := NewIntegrator(4 * time.Millisecond)
	v := Vector3{X: 1, Y: 2, Z: 3}

	i.Put(0, v)
	for _, ts := range []uint64{1000, 2000, 3000} {
		flushed, _, _ := i.Put(ts, v)
		test.That(t, flushed, test.ShouldBeFalse)
	}
	flushed, delta, window := i.Put(4000, v)
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, window, test.ShouldEqual, 4*time.Millisecond)
	test.That(t, delta.X, test.ShouldAlmostEqual, 0.004)
	test.That(t, delta.Y, test.ShouldAlmostEqual, 0.008)
	test.That(t, delta.Z, test.ShouldAlmostEqual, 0.012)
}

func TestIntegratorConservation(t *testing.T) {
	i := NewIntegrator(10 * time.Millisecond)
	steps := []struct {
		ts uint64
		v  Vector3
	}{
		{0, Vector3{X: 9, Y: 9, Z: 9}},
		{1500, Vector3{X: 1, Y: -2, Z: 0.5}},
		{2100, Vector3{X: 3.3, Y: 0, Z: -1}},
		{6100, Vector3{X: -7, Y: 4, Z: 2}},
		{9000, Vector3{X: 0.1, Y: 0.2, Z: 0.3}},
		{11000, Vector3{X: 5, Y: 5, Z: 5}},
	}

	var want Vector3
	var last uint64
	var flushed bool
	var delta Vector3
	var window time.Duration
	for n, s := range steps {
		if n > 0 {
			want = want.Add(s.v.Scale(float64(s.ts-last) / 1e6))
		}
		last = s.ts
		flushed, delta, window = i.Put(s.ts, s.v)
		if n < len(steps)-1 {
			test.That(t, flushed, test.ShouldBeFalse)
		}
	}
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, window, test.ShouldEqual, 11*time.Millisecond)
	test.That(t, delta.X, test.ShouldAlmostEqual, want.X, 1e-12)
	test.That(t, delta.Y, test.ShouldAlmostEqual, want.Y, 1e-12)
	test.That(t, delta.Z, test.ShouldAlmostEqual, want.Z, 1e-12)
}

func TestIntegratorNeverDoubleCounts(t *testing.T) {
	i := NewIntegrator(2 * time.Millisecond)
	i.Put(0, Vector3{X: 50})
	flushed, delta, _ := i.Put(2000, Vector3{X: 50})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, delta.X, test.ShouldAlmostEqual, 0.1)

	// zero vector, zero elapsed time: nothing to report
	flushed, _, _ = i.Put(2000, Vector3{})
	test.That(t, flushed, test.ShouldBeFalse)

	flushed, delta, window := i.Put(4000, Vector3{})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, window, test.ShouldEqual, 2*time.Millisecond)
	test.That(t, delta, test.ShouldResemble, Vector3{})
}

func TestIntegratorClockRegression(t *testing.T) {
	i := NewIntegrator(4 * time.Millisecond)
	i.Put(10000, Vector3{X: 1})

	flushed, delta, window := i.Put(9999, Vector3{X: 1})
	test.That(t, flushed, test.ShouldBeFalse)
	test.That(t, delta, test.ShouldResemble, Vector3{})
	test.That(t, window, test.ShouldEqual, time.Duration(0))
	test.That(t, i.ClockRegressions(), test.ShouldEqual, uint64(1))

	// the clock did not move back, so the window is measured from 10000
	flushed, delta, window = i.Put(14000, Vector3{X: 1})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, window, test.ShouldEqual, 4*time.Millisecond)
	test.That(t, delta.X, test.ShouldAlmostEqual, 0.004)
}

func TestIntegratorSkipsNonFinite(t *testing.T) {
	i := NewIntegrator(0)
	i.Put(0, Vector3{})
	flushed, delta, _ := i.Put(1000, Vector3{X: math.NaN(), Y: 1})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, delta, test.ShouldResemble, Vector3{})
	test.That(t, i.NonFiniteSamples(), test.ShouldEqual, uint64(1))

	flushed, delta, _ = i.Put(2000, Vector3{X: 1, Y: math.Inf(-1)})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, delta, test.ShouldResemble, Vector3{})
	test.That(t, i.NonFiniteSamples(), test.ShouldEqual, uint64(2))
}

func TestIntegratorZeroIntervalFlushesEveryAdvance(t *testing.T) {
	i := NewIntegrator(0)
	i.Put(100, Vector3{X: 2})
	flushed, delta, window := i.Put(600, Vector3{X: 2})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, window, test.ShouldEqual, 500*time.Microsecond)
	test.That(t, delta.X, test.ShouldAlmostEqual, 0.001)

	flushed, _, _ = i.Put(600, Vector3{X: 2})
	test.That(t, flushed, test.ShouldBeFalse)
}

func TestIntegratorReset(t *testing.T) {
	i := NewIntegrator(time.Millisecond)
	i.Put(0, Vector3{X: 1})
	i.Put(500, Vector3{X: 1})
	i.Reset()

	flushed, _, _ := i.Put(5000, Vector3{X: 1})
	test.That(t, flushed, test.ShouldBeFalse)
	flushed, delta, window := i.Put(6000, Vector3{X: 1})
	test.That(t, flushed, test.ShouldBeTrue)
	test.That(t, window, test.ShouldEqual, time.Millisecond)
	test.That(t, delta.X, test.ShouldAlmostEqual, 0.001)

	i.SetInterval(-time.Second)
	test.That(t, i.Interval(), test.ShouldEqual, time.Duration(0))
}
