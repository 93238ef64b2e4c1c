package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/relabs-tech/gyro_computer/internal/bus"
	"github.com/relabs-tech/gyro_computer/internal/config"
	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

// scaleResponse is the body of GET /api/gyro/scale.
type scaleResponse struct {
	DeviceID uint32  `json:"device_id"`
	Scale    float64 `json:"scale"`
}

// scaleRequest is the body of PUT /api/gyro/scale.
type scaleRequest struct {
	DeviceID *uint32 `json:"device_id,omitempty"`
	Scale    float64 `json:"scale"`
}

// calibrationRequest is the body of the calibration endpoints.
type calibrationRequest struct {
	DeviceID *uint32 `json:"device_id,omitempty"`
	Axis     string  `json:"axis,omitempty"`
	KnownDeg float64 `json:"known_deg,omitempty"`
	Apply    bool    `json:"apply,omitempty"`
}

// filterRequest is the body of PUT /api/gyro/filter.
type filterRequest struct {
	DeviceID   *uint32 `json:"device_id,omitempty"`
	SampleFreq float64 `json:"sample_freq"`
	CutoffFreq float64 `json:"cutoff_freq"`
}

var errNoControlTopic = errors.New("control topic not configured")

// forwardControl validates websocket control payloads before they go to
// the bus.
func forwardControl(send func(bus.ControlMessage) error) func([]byte) error {
	return func(payload []byte) error {
		var msg bus.ControlMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("invalid control message: %w", err)
		}
		switch msg.Action {
		case bus.ActionSetScale, bus.ActionSetCutoff, bus.ActionConfigureFilter:
		default:
			return fmt.Errorf("unknown action %q", msg.Action)
		}
		return send(msg)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("json encode error: %v", err)
	}
}

// newWebMux serves the latest report, the live stream and the control
// endpoints. send publishes control messages to the producer.
func newWebMux(hub *bus.Hub, cal *ScaleCalibration, send func(bus.ControlMessage) error, logger *zap.SugaredLogger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/gyro", func(w http.ResponseWriter, r *http.Request) {
		report, ok := hub.Latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, report)
	})

	mux.Handle("/ws/gyro", hub)

	mux.HandleFunc("/api/gyro/scale", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			report, ok := hub.Latest()
			if !ok {
				http.Error(w, "no data yet", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, logger, scaleResponse{DeviceID: report.DeviceID, Scale: report.Scaling})
		case http.MethodPut:
			var req scaleRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
				return
			}
			if req.Scale <= 0 {
				http.Error(w, "scale must be positive", http.StatusBadRequest)
				return
			}
			msg := bus.ControlMessage{Action: bus.ActionSetScale, DeviceID: req.DeviceID, Value: req.Scale}
			if err := send(msg); err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/gyro/filter", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req filterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.SampleFreq <= 0 || req.CutoffFreq < 0 {
			http.Error(w, "sample_freq must be positive and cutoff_freq non-negative", http.StatusBadRequest)
			return
		}
		msg := bus.ControlMessage{
			Action:     bus.ActionConfigureFilter,
			DeviceID:   req.DeviceID,
			SampleFreq: req.SampleFreq,
			CutoffFreq: req.CutoffFreq,
		}
		if err := send(msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/api/gyro/calibration/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		// an empty body, chunked or not, is an empty request
		var req calibrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}

		switch strings.TrimPrefix(r.URL.Path, "/api/gyro/calibration/") {
		case "start":
			if err := cal.Start(req.Axis); err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, errCalibrationActive) {
					status = http.StatusConflict
				}
				http.Error(w, err.Error(), status)
				return
			}
			logger.Infof("calibration: started on axis %s", req.Axis)
			w.WriteHeader(http.StatusNoContent)

		case "cancel":
			cal.Cancel()
			logger.Info("calibration: cancelled by user")
			w.WriteHeader(http.StatusNoContent)

		case "finish":
			res, err := cal.Finish(req.KnownDeg)
			if err != nil {
				status := http.StatusUnprocessableEntity
				if errors.Is(err, errCalibrationInactive) || errors.Is(err, errCalibrationAborted) {
					status = http.StatusConflict
				}
				http.Error(w, err.Error(), status)
				return
			}
			logger.Infow("calibration: complete",
				"axis", res.Axis,
				"measured_deg", res.MeasuredDeg,
				"known_deg", res.KnownDeg,
				"new_scale", res.NewScale,
			)
			if req.Apply {
				msg := bus.ControlMessage{Action: bus.ActionSetScale, DeviceID: req.DeviceID, Value: res.NewScale}
				if err := send(msg); err != nil {
					http.Error(w, err.Error(), http.StatusBadGateway)
					return
				}
			}
			writeJSON(w, logger, res)

		default:
			http.NotFound(w, r)
		}
	})

	return mux
}

// RunWeb mirrors gyro reports from MQTT to HTTP and websocket clients and
// forwards control requests back to the producer.
func RunWeb(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	// 1) Connect to MQTT broker
	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infof("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	send := func(msg bus.ControlMessage) error {
		if cfg.TopicGyroControl == "" {
			return errNoControlTopic
		}
		return bus.SendControl(client, cfg.TopicGyroControl, msg)
	}

	hub := bus.NewHub(logger, forwardControl(send))
	defer hub.Close()
	cal := &ScaleCalibration{}

	// 2) Subscribe to reports and fan them out
	err = bus.SubscribeReports(client, cfg.TopicGyro, logger, func(r gyro.Report) {
		hub.Publish(r)
		cal.Observe(r)
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	logger.Infof("web: server listening on %s", addr)
	return http.ListenAndServe(addr, newWebMux(hub, cal, send, logger))
}
