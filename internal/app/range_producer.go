package app

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ThiagoMGLima/voxel3D/internal/acquire"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
	"github.com/ThiagoMGLima/voxel3D/internal/readinglog"
)

// newPipeline builds a pipeline from the config's tuning block.
func newPipeline(cfg *config.Config, src distance.Source) (*distance.Pipeline, error) {
	return distance.NewPipeline(src, distance.Options{
		SensorModel:    cfg.SensorModel,
		SamplesPerRead: cfg.SamplesPerRead,
		WindowSize:     cfg.WindowSize,
		KalmanQ:        cfg.KalmanQ,
		KalmanR:        cfg.KalmanR,
		KalmanP0:       cfg.KalmanP0,
		MADThreshold:   cfg.MADThreshold,
	})
}

func RunRangeProducer() error {
	log.Println("starting voxel3d range producer")

	cfg := config.Get()

	// --- open the voltage source and build the pipeline ---
	src, closeSrc, err := acquire.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open voltage source: %v", err)
		return err
	}
	defer closeSrc()

	pipe, err := newPipeline(cfg, src)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
		return err
	}

	// --- load calibration, fall back to the theoretical curve ---
	if err := pipe.LoadCalibration(cfg.CalibrationPath); err != nil {
		if !errors.Is(err, distance.ErrCalibrationUnavailable) {
			log.Fatalf("failed to load calibration: %v", err)
			return err
		}
		log.Printf("producer: %v, converting through the theoretical curve", err)
	} else {
		log.Printf("producer: loaded calibration from %s (%d points)", cfg.CalibrationPath, len(pipe.CalibrationPoints()))
	}

	// --- optional readings log ---
	var store *readinglog.Store
	if cfg.DBPath != "" {
		store, err = readinglog.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open readings log: %v", err)
			return err
		}
		defer store.Close()
		log.Printf("producer: logging readings to %s", cfg.DBPath)
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("producer: connected to MQTT, starting publish loop")

	readTicker := time.NewTicker(time.Duration(cfg.ReadInterval) * time.Millisecond)
	defer readTicker.Stop()
	statsTicker := time.NewTicker(time.Duration(cfg.StatsInterval) * time.Millisecond)
	defer statsTicker.Stop()

	for {
		select {
		case <-readTicker.C:
			// 1) run one pipeline cycle
			reading, err := pipe.Read()
			if err != nil {
				log.Printf("producer: read error: %v", err)
				continue
			}

			// 2) publish the reading
			payload, err := json.Marshal(reading)
			if err != nil {
				log.Printf("producer: json marshal error (reading): %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicRange, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("producer: MQTT publish error (range): %v", token.Error())
				continue
			}

			// 3) append to the readings log
			if store != nil {
				rec := readinglog.Record{
					DistanceCM:    reading.DistanceCM,
					DistanceRawCM: reading.RawDistanceCM,
					VoltageV:      reading.Voltage,
					VoltageStd:    reading.VoltageStdDev,
					KalmanP:       pipe.Stats().KalmanCovariance,
				}
				if err := store.Insert(rec); err != nil {
					log.Printf("producer: readings log error: %v", err)
				}
			}

		case <-statsTicker.C:
			stats := pipe.Stats()
			payload, err := json.Marshal(stats)
			if err != nil {
				log.Printf("producer: json marshal error (stats): %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicStats, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("producer: MQTT publish error (stats): %v", token.Error())
				continue
			}

			log.Printf("producer: %d readings | dist=%.2f cm (std=%.2f, trend=%+.3f/read) | volt=%.3f V | rate=%.1f Hz",
				stats.Readings, stats.DistanceCM, stats.DistanceStdCM, stats.TrendCMPerRead,
				stats.VoltageMean, stats.RateHz)
		}
	}
}
