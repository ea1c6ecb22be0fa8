package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to readings
	rangeToken := client.Subscribe(cfg.TopicRange, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r distance.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: reading unmarshal error: %v", err)
			return
		}

		marker := " "
		if !r.InRange {
			marker = "!"
		}
		fmt.Printf(
			"[RANGE]%s DIST=%6.2f cm  RAW=%6.2f cm  STD=%5.2f  VOLT=%5.3f V\n",
			marker, r.DistanceCM, r.RawDistanceCM, r.StdDevCM, r.Voltage,
		)
	})
	rangeToken.Wait()
	if rangeToken.Error() != nil {
		return rangeToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicRange)

	// Subscribe to stats
	statsToken := client.Subscribe(cfg.TopicStats, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s distance.Stats
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: stats unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STATS] n=%d  mean=%6.2f cm  min=%6.2f  max=%6.2f  trend=%+.3f/read  rate=%4.1f Hz  cal=%d pts\n",
			s.Readings, s.DistanceMeanCM, s.DistanceMinCM, s.DistanceMaxCM,
			s.TrendCMPerRead, s.RateHz, s.CalibrationPoints,
		)
	})
	statsToken.Wait()
	if statsToken.Error() != nil {
		return statsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStats)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
