package main

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ThiagoMGLima/voxel3D/internal/acquire"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

func main() {
	log.Println("starting voxel3d MQTT producer (mock)")

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://localhost:1883").
		SetClientID("voxel3d-producer-mock")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
	}
	defer client.Disconnect(250)

	pipe, err := distance.NewPipeline(acquire.NewSimSource(0), distance.Options{})
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		reading, err := pipe.Read()
		if err != nil {
			log.Printf("error from pipeline: %v", err)
			continue
		}

		payload, err := json.Marshal(reading)
		if err != nil {
			log.Printf("json marshal error: %v", err)
			continue
		}

		token := client.Publish("voxel3d/range", 0, true, payload)
		token.Wait()

		log.Printf("%s published reading: %.2f cm (%.3f V)", t.Format(time.RFC3339), reading.DistanceCM, reading.Voltage)
	}
}
