package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger := NewLogger("gyro", debug)
		test.That(t, logger, test.ShouldNotBeNil)
		logger.Debugw("pipeline configured", "sample_rate_hz", 1000)
		_ = logger.Sync()
	}
	test.That(t, NewTestLogger(), test.ShouldNotBeNil)
}
