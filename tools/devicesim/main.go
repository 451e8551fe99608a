// devicesim emits a synthetic fleet event stream against POST /ingest:
// telemetry in both extension units, battery and height readings, the
// occasional malformed payload, and device_startup events signed with the
// shared provisioning secret.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

var eventTypes = []string{
	"platform_extension_ticks",
	"platform_extension_mm",
	"battery_charge",
	"platform_height_mm",
}

var firmwarePool = []string{"1.0.0", "1.1.0", "1.1.1", "2.0.0-beta"}

type config struct {
	url           string
	devices       int
	count         int
	batchSize     int
	interval      time.Duration
	malformedProb float64
	newDeviceRate float64
	secret        string
	seed          int64
}

func main() {
	cfg := parseConfig()
	rng := rand.New(rand.NewSource(cfg.seed))
	client := &http.Client{Timeout: 10 * time.Second}

	sent := 0
	for cfg.count == 0 || sent < cfg.count {
		batch := make([]map[string]any, 0, cfg.batchSize)
		for i := 0; i < cfg.batchSize; i++ {
			if rng.Float64() < cfg.newDeviceRate {
				batch = append(batch, generateStartup(rng, cfg.secret))
				continue
			}
			deviceID := rng.Intn(cfg.devices) + 1
			batch = append(batch, generateEvent(rng, deviceID, cfg.malformedProb))
		}

		if err := post(client, cfg.url, batch); err != nil {
			log.Printf("post error: %v", err)
		}
		sent += len(batch)
		time.Sleep(cfg.interval)
	}
	log.Printf("sent %d events", sent)
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.url, "url", "http://localhost:8080/ingest", "ingest endpoint")
	flag.IntVar(&cfg.devices, "devices", 5, "number of legacy device ids in play")
	flag.IntVar(&cfg.count, "count", 0, "total events to send (0 = run forever)")
	flag.IntVar(&cfg.batchSize, "batch", 10, "events per request")
	flag.DurationVar(&cfg.interval, "interval", 200*time.Millisecond, "pause between requests")
	flag.Float64Var(&cfg.malformedProb, "malformed-prob", 0.1, "probability of a malformed event")
	flag.Float64Var(&cfg.newDeviceRate, "new-device-rate", 0.02, "probability of a device_startup event")
	flag.StringVar(&cfg.secret, "secret", "ABLE-SECRET", "shared provisioning secret")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "rng seed")
	flag.Parse()
	if cfg.devices <= 0 {
		log.Fatal("devices must be > 0")
	}
	if cfg.batchSize <= 0 {
		log.Fatal("batch must be > 0")
	}
	return cfg
}

func generateEvent(rng *rand.Rand, deviceID int, malformedProb float64) map[string]any {
	if rng.Float64() < malformedProb {
		return generateMalformed(rng, deviceID)
	}

	eventType := eventTypes[rng.Intn(len(eventTypes))]
	var value float64
	switch eventType {
	case "platform_extension_ticks":
		value = float64(rng.Intn(3001))
	case "platform_extension_mm":
		value = float64(rng.Intn(301) - 150)
	case "battery_charge":
		value = 10 + rng.Float64()*90
	case "platform_height_mm":
		value = float64(rng.Intn(201))
	}

	return map[string]any{
		"device_id":  deviceID,
		"event_type": eventType,
		"value":      value,
		"timestamp":  float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

func generateMalformed(rng *rand.Rand, deviceID int) map[string]any {
	options := []map[string]any{
		{},
		{"device_id": deviceID},
		{"event_type": "platform_extension_mm"},
		{"event_type": "battery_charge", "value": "high"},
		{"device_id": deviceID, "value": 123},
	}
	return options[rng.Intn(len(options))]
}

func generateStartup(rng *rand.Rand, secret string) map[string]any {
	serial := randomSerial(rng)
	return map[string]any{
		"event_type":      "device_startup",
		"serial":          serial,
		"provision_token": signSerial(secret, serial),
		"firmware":        firmwarePool[rng.Intn(len(firmwarePool))],
		"timestamp":       float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

func randomSerial(rng *rand.Rand) string {
	const hexDigits = "0123456789ABCDEF"
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return "AI-" + string(suffix)
}

func signSerial(secret, serial string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(serial))
	return hex.EncodeToString(mac.Sum(nil))
}

func post(client *http.Client, url string, batch []map[string]any) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest returned %d", resp.StatusCode)
	}
	return nil
}
