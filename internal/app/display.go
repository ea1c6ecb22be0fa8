package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	reading     distance.Reading
	haveReading bool

	stats     distance.Stats
	haveStats bool
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// Initialize display
	display, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: display initialized")

	// Show splash screen
	if err := showSplash(display); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	// Data storage
	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to range readings
	token := client.Subscribe(cfg.TopicRange, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r distance.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: range unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.reading = r
		data.haveReading = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicRange, token.Error())
	}
	log.Printf("display: subscribed to %s", cfg.TopicRange)

	// Subscribe to pipeline stats
	token = client.Subscribe(cfg.TopicStats, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st distance.Stats
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: stats unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.stats = st
		data.haveStats = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicStats, token.Error())
	}
	log.Printf("display: subscribed to %s", cfg.TopicStats)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		// Read data without copying the mutex
		data.mu.RLock()
		snapshot := DisplayData{
			reading:     data.reading,
			haveReading: data.haveReading,
			stats:       data.stats,
			haveStats:   data.haveStats,
		}
		data.mu.RUnlock()

		if err := updateRangeDisplay(display, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateRangeDisplay(dev *ssd1306.Dev, data *DisplayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveReading {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Range Sensor"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		r := data.reading

		// Distance, flagged when the reading was clamped to the span
		marker := ""
		if !r.InRange {
			marker = " !"
		}
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("D:%7.2f cm%s", r.DistanceCM, marker)))

		// Voltage
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("V:%7.3f V", r.Voltage)))

		// Spread over the smoothing window
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("s:%7.2f cm", r.StdDevCM)))

		// Throughput
		if data.haveStats {
			drawer.Dot = fixed.P(0, 52)
			drawer.DrawBytes([]byte(fmt.Sprintf("n:%6d %5.1f/s", data.stats.Readings, data.stats.RateHz)))
		}
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(25, 26)
	drawer.DrawBytes([]byte("voxel3D"))

	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("IR Rangefinder"))

	drawer.Dot = fixed.P(15, 56)
	drawer.DrawBytes([]byte("GP2Y0A41SK0F"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
