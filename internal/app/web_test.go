package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/gyro_computer/internal/bus"
	"github.com/relabs-tech/gyro_computer/internal/gyro"
	"github.com/relabs-tech/gyro_computer/internal/logging"
)

type controlRecorder struct {
	sent []bus.ControlMessage
	err  error
}

func (c *controlRecorder) send(msg bus.ControlMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newTestWeb() (*bus.Hub, *controlRecorder, http.Handler) {
	hub, _, rec, mux := newTestWebWithCalibration()
	return hub, rec, mux
}

func newTestWebWithCalibration() (*bus.Hub, *ScaleCalibration, *controlRecorder, http.Handler) {
	logger := logging.NewTestLogger()
	rec := &controlRecorder{}
	hub := bus.NewHub(logger, forwardControl(rec.send))
	cal := &ScaleCalibration{}
	return hub, cal, rec, newWebMux(hub, cal, rec.send, logger)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestWebLatestReport(t *testing.T) {
	hub, _, mux := newTestWeb()

	w := serve(mux, http.MethodGet, "/api/gyro", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusServiceUnavailable)

	test.That(t, hub.Publish(gyro.Report{DeviceID: 3, Y: 0.25, Scaling: 0.002}), test.ShouldBeNil)
	w = serve(mux, http.MethodGet, "/api/gyro", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, w.Header().Get("Content-Type"), test.ShouldEqual, "application/json")

	var got gyro.Report
	test.That(t, json.Unmarshal(w.Body.Bytes(), &got), test.ShouldBeNil)
	test.That(t, got.DeviceID, test.ShouldEqual, uint32(3))
	test.That(t, got.Y, test.ShouldEqual, 0.25)
}

func TestWebScale(t *testing.T) {
	hub, rec, mux := newTestWeb()

	w := serve(mux, http.MethodGet, "/api/gyro/scale", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusServiceUnavailable)

	test.That(t, hub.Publish(gyro.Report{DeviceID: 3, Scaling: 0.002}), test.ShouldBeNil)
	w = serve(mux, http.MethodGet, "/api/gyro/scale", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	var got scaleResponse
	test.That(t, json.Unmarshal(w.Body.Bytes(), &got), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, scaleResponse{DeviceID: 3, Scale: 0.002})

	w = serve(mux, http.MethodPut, "/api/gyro/scale", `{"device_id":3,"scale":0.004}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusAccepted)
	test.That(t, len(rec.sent), test.ShouldEqual, 1)
	test.That(t, rec.sent[0].Action, test.ShouldEqual, bus.ActionSetScale)
	test.That(t, *rec.sent[0].DeviceID, test.ShouldEqual, uint32(3))
	test.That(t, rec.sent[0].Value, test.ShouldEqual, 0.004)

	w = serve(mux, http.MethodPut, "/api/gyro/scale", `{"scale":0}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)
	w = serve(mux, http.MethodPut, "/api/gyro/scale", `{`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)
	w = serve(mux, http.MethodDelete, "/api/gyro/scale", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusMethodNotAllowed)
	test.That(t, len(rec.sent), test.ShouldEqual, 1)

	rec.err = errors.New("broker down")
	w = serve(mux, http.MethodPut, "/api/gyro/scale", `{"scale":1}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadGateway)
}

func TestWebFilter(t *testing.T) {
	_, rec, mux := newTestWeb()

	w := serve(mux, http.MethodPut, "/api/gyro/filter", `{"sample_freq":800,"cutoff_freq":25}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusAccepted)
	test.That(t, len(rec.sent), test.ShouldEqual, 1)
	test.That(t, rec.sent[0].Action, test.ShouldEqual, bus.ActionConfigureFilter)
	test.That(t, rec.sent[0].DeviceID, test.ShouldBeNil)
	test.That(t, rec.sent[0].SampleFreq, test.ShouldEqual, 800.0)
	test.That(t, rec.sent[0].CutoffFreq, test.ShouldEqual, 25.0)

	w = serve(mux, http.MethodPut, "/api/gyro/filter", `{"sample_freq":0,"cutoff_freq":25}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)
	w = serve(mux, http.MethodGet, "/api/gyro/filter", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusMethodNotAllowed)
}

func TestForwardControl(t *testing.T) {
	rec := &controlRecorder{}
	forward := forwardControl(rec.send)

	test.That(t, forward([]byte(`{"action":"set_cutoff","value":15}`)), test.ShouldBeNil)
	test.That(t, len(rec.sent), test.ShouldEqual, 1)
	test.That(t, rec.sent[0].Value, test.ShouldEqual, 15.0)

	test.That(t, forward([]byte(`{"action":"self_destruct"}`)), test.ShouldNotBeNil)
	test.That(t, forward([]byte(`nope`)), test.ShouldNotBeNil)
	test.That(t, len(rec.sent), test.ShouldEqual, 1)
}

func TestWebCalibration(t *testing.T) {
	_, cal, rec, mux := newTestWebWithCalibration()

	w := serve(mux, http.MethodPost, "/api/gyro/calibration/finish", `{"known_deg":90}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusConflict)

	w = serve(mux, http.MethodPost, "/api/gyro/calibration/start", `{"axis":"q"}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)

	w = serve(mux, http.MethodPost, "/api/gyro/calibration/start", `{"axis":"z"}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusNoContent)
	w = serve(mux, http.MethodPost, "/api/gyro/calibration/start", `{"axis":"z"}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusConflict)

	for _, r := range turnReports(100, 50, 0.01) {
		cal.Observe(r)
	}
	w = serve(mux, http.MethodPost, "/api/gyro/calibration/finish", `{"known_deg":90,"apply":true,"device_id":2}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)

	var res CalibrationResult
	test.That(t, json.Unmarshal(w.Body.Bytes(), &res), test.ShouldBeNil)
	test.That(t, res.NewScale, test.ShouldAlmostEqual, 0.009, 1e-12)
	test.That(t, len(rec.sent), test.ShouldEqual, 1)
	test.That(t, rec.sent[0].Action, test.ShouldEqual, bus.ActionSetScale)
	test.That(t, *rec.sent[0].DeviceID, test.ShouldEqual, uint32(2))
	test.That(t, rec.sent[0].Value, test.ShouldAlmostEqual, 0.009, 1e-12)

	w = serve(mux, http.MethodPost, "/api/gyro/calibration/start", `{"axis":"x"}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusNoContent)
	w = serve(mux, http.MethodPost, "/api/gyro/calibration/cancel", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, cal.Active(), test.ShouldBeFalse)

	w = serve(mux, http.MethodGet, "/api/gyro/calibration/start", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusMethodNotAllowed)
	w = serve(mux, http.MethodPost, "/api/gyro/calibration/reboot", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusNotFound)
}

func TestWebCalibrationBodyWithoutLength(t *testing.T) {
	_, cal, _, mux := newTestWebWithCalibration()

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		// chunked transfer: length unknown
		req.ContentLength = -1
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := post("/api/gyro/calibration/start", `{"axis":"y"}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, cal.Active(), test.ShouldBeTrue)

	w = post("/api/gyro/calibration/cancel", "")
	test.That(t, w.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, cal.Active(), test.ShouldBeFalse)

	w = post("/api/gyro/calibration/start", `{"axis":`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, w.Body.String(), test.ShouldContainSubstring, "invalid body")
}

func TestWebCalibrationAbortedByScaleChange(t *testing.T) {
	_, cal, rec, mux := newTestWebWithCalibration()

	w := serve(mux, http.MethodPost, "/api/gyro/calibration/start", `{"axis":"z"}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusNoContent)
	cal.Observe(gyro.Report{ZIntegral: 1, Scaling: 0.01})
	cal.Observe(gyro.Report{ZIntegral: 1, Scaling: 0.02})

	w = serve(mux, http.MethodPost, "/api/gyro/calibration/finish", `{"known_deg":90,"apply":true}`)
	test.That(t, w.Code, test.ShouldEqual, http.StatusConflict)
	test.That(t, w.Body.String(), test.ShouldContainSubstring, "scale changed")
	test.That(t, len(rec.sent), test.ShouldEqual, 0)
}
