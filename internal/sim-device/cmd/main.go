package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/metrics"
	"github.com/KongGithubDev/MushIoT/internal/model"
	"github.com/KongGithubDev/MushIoT/internal/recorder"
	sim_device "github.com/KongGithubDev/MushIoT/internal/sim-device"
	"github.com/KongGithubDev/MushIoT/pkg/keystore"
	"github.com/KongGithubDev/MushIoT/pkg/rabbitmq"
)

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
	device := flag.String("device", "esp32-sim1", "device id, or \"auto\" to generate one")
	enrollSecret := flag.String("enroll-secret", envStr("ENROLL_SECRET", ""), "enrollment secret for rotate-key")
	interval := flag.Duration("interval", 60*time.Second, "fallback send interval")
	seed := flag.Int64("seed", 0, "seed for a reproducible run, 0 means random")
	statePath := flag.String("state", ".tester_state.db", "api key store path")

	mirrorHost := flag.String("mirror-host", "", "MQTT broker for the reading mirror, empty disables")
	mirrorPort := flag.Int("mirror-port", 1883, "MQTT broker port")
	mirrorUser := flag.String("mirror-user", "guest", "MQTT user")
	mirrorPass := flag.String("mirror-pass", "guest", "MQTT password")
	mirrorTopic := flag.String("mirror-topic", "mushiot/readings/{device}", "mirror topic template")

	influxURL := flag.String("influx-url", "", "InfluxDB URL for the reading mirror, empty disables")
	influxToken := flag.String("influx-token", os.Getenv("INFLUX_TOKEN"), "InfluxDB token")
	influxOrg := flag.String("influx-org", "mushiot", "InfluxDB org")
	influxBucket := flag.String("influx-bucket", "readings", "InfluxDB bucket")

	metricsAddr := flag.String("metrics-addr", "", "listen address for /metrics, empty disables")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("sim: shutting down...")
		cancel()
	}()

	deviceID := *device
	if strings.EqualFold(deviceID, "auto") {
		deviceID = sim_device.AutoDeviceID()
		log.Printf("sim: generated device id %s", deviceID)
	}

	keys, err := keystore.Open(*statePath)
	if err != nil {
		log.Fatalf("sim: %v", err)
	}
	defer keys.Close()

	var recorders []sim_device.Recorder
	if *mirrorHost != "" {
		mqttClient, err := rabbitmq.NewRabbitMQConn(&rabbitmq.RabbitMQConfig{
			Host:     *mirrorHost,
			Port:     *mirrorPort,
			User:     *mirrorUser,
			Password: *mirrorPass,
			ClientID: deviceID,
		}, ctx)
		if err != nil {
			log.Fatalf("sim: mqtt: %v", err)
		}
		mirror := recorder.NewMQTT(rabbitmq.NewPublisher(mqttClient), *mirrorTopic)
		defer mirror.Close()
		recorders = append(recorders, mirror)
	}
	if *influxURL != "" {
		flux := recorder.NewInflux(*influxURL, *influxToken, *influxOrg, *influxBucket)
		defer flux.Close()
		recorders = append(recorders, flux)
	}

	if *metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, *metricsAddr); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	client := api.NewClient(api.BaseURL(*host, *port, *useHTTPS))
	sim := sim_device.New(client, sim_device.Config{
		Device:       model.Device{ID: deviceID},
		Keys:         keys,
		EnrollSecret: *enrollSecret,
		Interval:     *interval,
		Seed:         *seed,
		Recorders:    recorders,
	})
	if err := sim.Run(ctx); err != nil {
		log.Fatalf("sim: %v", err)
	}
}
