package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
	"github.com/ThiagoMGLima/voxel3D/internal/readinglog"
)

func RunWeb() error {
	cfg := config.Get()

	var (
		mu          sync.RWMutex
		lastReading distance.Reading
		haveReading bool
		lastStats   distance.Stats
		haveStats   bool
	)

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe and keep the latest snapshot of each topic
	rangeToken := client.Subscribe(cfg.TopicRange, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r distance.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("MQTT payload unmarshal error (range): %v", err)
			return
		}
		mu.Lock()
		lastReading = r
		haveReading = true
		mu.Unlock()
	})
	rangeToken.Wait()
	if rangeToken.Error() != nil {
		return rangeToken.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicRange)

	statsToken := client.Subscribe(cfg.TopicStats, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s distance.Stats
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("MQTT payload unmarshal error (stats): %v", err)
			return
		}
		mu.Lock()
		lastStats = s
		haveStats = true
		mu.Unlock()
	})
	statsToken.Wait()
	if statsToken.Error() != nil {
		return statsToken.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicStats)

	// 3) JSON API endpoints: latest reading and stats
	http.HandleFunc("/api/distance", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveReading {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastReading); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveStats {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastStats); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 4) Reading history out of the SQLite log, when one is configured
	if cfg.DBPath != "" {
		store, err := readinglog.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open readings log: %w", err)
		}
		defer store.Close()

		http.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
			n := 100
			if q := r.URL.Query().Get("n"); q != "" {
				v, err := strconv.Atoi(q)
				if err != nil || v < 1 {
					http.Error(w, "n must be a positive integer", http.StatusBadRequest)
					return
				}
				n = v
			}
			if n > 1000 {
				n = 1000
			}

			recs, err := store.Recent(n)
			if err != nil {
				log.Printf("history query error: %v", err)
				http.Error(w, "history unavailable", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(recs); err != nil {
				log.Printf("json encode error: %v", err)
			}
		})
		log.Printf("serving /api/history from %s", cfg.DBPath)
	}

	// 5) WebSocket endpoints: calibration wizard and voltage debug
	http.HandleFunc("/ws/calibration", HandleCalibrationWS)
	http.HandleFunc("/ws/debug", HandleVoltageDebugWS)

	// 6) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
