// One-shot tester: provision a device, post a single reading and an
// ack, then exit. Non-zero exit on any failure so it can gate CI.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/model"
	sim_device "github.com/KongGithubDev/MushIoT/internal/sim-device"
	"github.com/KongGithubDev/MushIoT/pkg/keystore"
)

const noteTester = "tester"

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	host := flag.String("host", "localhost", "backend host")
	port := flag.Int("port", 3000, "backend port")
	useHTTPS := flag.Bool("https", false, "use https")
	device := flag.String("device", "esp32-001", "device id, or \"auto\" to generate one")
	enrollSecret := flag.String("enroll-secret", envStr("ENROLL_SECRET", ""), "enrollment secret for rotate-key")
	reading := flag.Int("reading", 42, "moisture value to post")
	ackOn := flag.Bool("ack-on", false, "report the pump as on in the ack")
	provision := flag.Bool("provision", true, "rotate the key before sending")
	statePath := flag.String("state", ".tester_state.db", "api key store path")
	flag.Parse()

	deviceID := *device
	if strings.EqualFold(deviceID, "auto") {
		deviceID = sim_device.AutoDeviceID()
	}

	keys, err := keystore.Open(*statePath)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	defer keys.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := api.NewClient(api.BaseURL(*host, *port, *useHTTPS))

	apiKey, err := keys.Get(deviceID)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	if *provision || apiKey == "" {
		log.Printf("POST %s/api/devices/%s/rotate-key", client.Base(), deviceID)
		apiKey, err = client.RotateKey(ctx, deviceID, *enrollSecret)
		if err != nil {
			log.Fatalf("error: rotate-key: %v", err)
		}
		if err := keys.Put(deviceID, apiKey); err != nil {
			log.Fatalf("error: %v", err)
		}
		log.Printf("provisioned apiKey for %s", deviceID)
	}

	rd := model.Reading{
		DeviceID: deviceID,
		Moisture: *reading,
		Payload: model.ReadingPayload{
			Raw:    2000,
			PumpOn: false,
			Note:   noteTester,
		},
	}
	log.Printf("POST %s/api/readings moisture=%d", client.Base(), rd.Moisture)
	if err := client.PostReading(ctx, apiKey, rd); err != nil {
		log.Fatalf("error: post reading: %v", err)
	}

	ack := model.Ack{PumpOn: *ackOn, PumpMode: model.ModeAuto, Note: noteTester}
	log.Printf("POST %s/api/devices/%s/ack pumpOn=%t", client.Base(), deviceID, ack.PumpOn)
	if err := client.PostAck(ctx, deviceID, apiKey, ack); err != nil {
		log.Fatalf("error: post ack: %v", err)
	}

	log.Printf("done")
}
