package bus

import (
	"encoding/json"
	"errors"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/gyro_computer/internal/gyro"
	"github.com/relabs-tech/gyro_computer/internal/logging"
)

func TestPublisherPublish(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, "inertial/gyro", logging.NewTestLogger())

	r := gyro.Report{DeviceID: 42, X: 1.5, XIntegral: 0.01, IntegralDt: 4000, Timestamp: 123}
	test.That(t, p.Publish(r), test.ShouldBeNil)
	test.That(t, len(client.published), test.ShouldEqual, 1)

	msg := client.published[0]
	test.That(t, msg.topic, test.ShouldEqual, "inertial/gyro")
	test.That(t, msg.retained, test.ShouldBeTrue)

	var got gyro.Report
	test.That(t, json.Unmarshal(msg.payload, &got), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, r)

	var fields map[string]interface{}
	test.That(t, json.Unmarshal(msg.payload, &fields), test.ShouldBeNil)
	test.That(t, fields["integral_dt"], test.ShouldEqual, 4000.0)
	test.That(t, fields["x_integral"], test.ShouldEqual, 0.01)
}

func TestPublisherPublishError(t *testing.T) {
	client := newFakeClient()
	client.publishErr = errors.New("not connected")
	p := NewPublisher(client, "inertial/gyro", logging.NewTestLogger())

	err := p.Publish(gyro.Report{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not connected")
}

func TestPublisherCloseDisconnects(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, "inertial/gyro", logging.NewTestLogger())
	test.That(t, p.Topic(), test.ShouldEqual, "inertial/gyro")
	test.That(t, p.Client(), test.ShouldEqual, client)
	test.That(t, p.Close(), test.ShouldBeNil)
	test.That(t, client.disconnected, test.ShouldEqual, uint(disconnectQuiesceMS))
}

func TestSubscribeReports(t *testing.T) {
	client := newFakeClient()
	var got []gyro.Report
	err := SubscribeReports(client, "inertial/gyro", logging.NewTestLogger(), func(r gyro.Report) {
		got = append(got, r)
	})
	test.That(t, err, test.ShouldBeNil)

	payload, err := json.Marshal(gyro.Report{DeviceID: 9, Z: -2})
	test.That(t, err, test.ShouldBeNil)
	client.deliver("inertial/gyro", payload)
	client.deliver("inertial/gyro", []byte("{broken"))

	test.That(t, len(got), test.ShouldEqual, 1)
	test.That(t, got[0].DeviceID, test.ShouldEqual, uint32(9))
	test.That(t, got[0].Z, test.ShouldEqual, -2.0)
}

func TestSubscribeError(t *testing.T) {
	client := newFakeClient()
	client.subscribeErr = errors.New("denied")
	err := SubscribeReports(client, "inertial/gyro", logging.NewTestLogger(), func(gyro.Report) {})
	test.That(t, err, test.ShouldNotBeNil)
	err = SubscribeControl(client, "inertial/gyro/control", 0, &fakeController{}, logging.NewTestLogger())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestControlRoundTrip(t *testing.T) {
	client := newFakeClient()
	c := &fakeController{scale: 1}
	err := SubscribeControl(client, "inertial/gyro/control", 3, c, logging.NewTestLogger())
	test.That(t, err, test.ShouldBeNil)

	id := uint32(3)
	err = SendControl(client, "inertial/gyro/control", ControlMessage{Action: ActionSetScale, DeviceID: &id, Value: 0.125})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(client.published), test.ShouldEqual, 1)
	test.That(t, client.published[0].retained, test.ShouldBeFalse)

	client.deliver("inertial/gyro/control", client.published[0].payload)
	test.That(t, c.scale, test.ShouldEqual, 0.125)

	// rejected messages leave the controller alone
	client.deliver("inertial/gyro/control", []byte(`{"action":"nope"}`))
	test.That(t, c.scale, test.ShouldEqual, 0.125)
}
