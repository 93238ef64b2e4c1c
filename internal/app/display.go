package app

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gyro_computer/internal/bus"
	"github.com/relabs-tech/gyro_computer/internal/config"
	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

const radToDeg = 180 / math.Pi

// DisplayData holds the latest report for display
type DisplayData struct {
	mu sync.RWMutex

	report     gyro.Report
	haveReport bool
	// heading accumulated from the z integral since start, degrees
	yaw float64
}

func (d *DisplayData) update(r gyro.Report) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.report = r
	d.haveReport = true
	d.yaw = math.Mod(d.yaw+r.ZIntegral*radToDeg, 360)
}

func (d *DisplayData) snapshot() (gyro.Report, float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.report, d.yaw, d.haveReport
}

func RunDisplay(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	i2cBus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer i2cBus.Close()

	dev, err := ssd1306.NewI2C(i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	logger.Info("display: initialized")

	if err := drawFrame(dev, renderSplash()); err != nil {
		logger.Warnf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infof("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := bus.SubscribeReports(client, cfg.TopicGyro, logger, data.update); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("display: starting update loop")

	for range ticker.C {
		r, yaw, ok := data.snapshot()
		if err := drawFrame(dev, renderReport(r, yaw, ok)); err != nil {
			logger.Warnf("display: error updating display: %v", err)
		}
	}

	return nil
}

func drawFrame(dev *ssd1306.Dev, img *image1bit.VerticalLSB) error {
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// renderReport draws filtered rates in °/s and the accumulated heading.
func renderReport(r gyro.Report, yaw float64, haveData bool) *image1bit.VerticalLSB {
	img, drawer := newFrame()

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Gyro")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("X:%7.1f d/s", r.X*radToDeg))
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("Y:%7.1f d/s", r.Y*radToDeg))
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(fmt.Sprintf("Z:%7.1f d/s", r.Z*radToDeg))
	drawer.Dot = fixed.P(0, 52)
	drawer.DrawString(fmt.Sprintf("Hdg:%6.1f e%d", yaw, r.ErrorCount))
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Gyro Pi")

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Keep still for")

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawString("bias cal")

	return img
}
