package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/metrics"
	"github.com/KongGithubDev/MushIoT/internal/recorder"
	sim_device "github.com/KongGithubDev/MushIoT/internal/sim-device"
	sim_multi "github.com/KongGithubDev/MushIoT/internal/sim-multi"
	"github.com/KongGithubDev/MushIoT/pkg/keystore"
	"github.com/KongGithubDev/MushIoT/pkg/rabbitmq"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	host := flag.String("host", envStr("MUSHIOT_HOST", "localhost"), "backend host")
	port := flag.Int("port", envInt("MUSHIOT_PORT", 3000), "backend port")
	useHTTPS := flag.Bool("https", false, "use https")
	count := flag.Int("count", envInt("SIM_COUNT", 3), "number of devices")
	prefix := flag.String("prefix", envStr("SIM_PREFIX", "esp32-sim"), "device id prefix")
	enrollSecret := flag.String("enroll-secret", envStr("ENROLL_SECRET", ""), "enrollment secret for rotate-key")
	interval := flag.Duration("interval", 10*time.Second, "fallback send interval")
	seed := flag.Int64("seed", 0, "base seed, device i runs with seed+i; 0 means random")
	statePath := flag.String("state", ".tester_state.db", "api key store path")
	summaryEvery := flag.Duration("summary", time.Minute, "fleet summary log period, 0 disables")

	mirrorHost := flag.String("mirror-host", envStr("MQTT_HOST", ""), "MQTT broker for the reading mirror, empty disables")
	mirrorPort := flag.Int("mirror-port", envInt("MQTT_PORT", 1883), "MQTT broker port")
	mirrorUser := flag.String("mirror-user", envStr("MQTT_USER", "guest"), "MQTT user")
	mirrorPass := flag.String("mirror-pass", envStr("MQTT_PASSWORD", "guest"), "MQTT password")
	mirrorTopic := flag.String("mirror-topic", "mushiot/readings/{device}", "mirror topic template")

	influxURL := flag.String("influx-url", envStr("INFLUX_URL", ""), "InfluxDB URL for the reading mirror, empty disables")
	influxToken := flag.String("influx-token", os.Getenv("INFLUX_TOKEN"), "InfluxDB token")
	influxOrg := flag.String("influx-org", envStr("INFLUX_ORG", "mushiot"), "InfluxDB org")
	influxBucket := flag.String("influx-bucket", envStr("INFLUX_BUCKET", "readings"), "InfluxDB bucket")

	httpPort := flag.Int("http-port", envInt("HTTP_PORT", 8080), "port for /healthz and /metrics")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("fleet: shutting down...")
		cancel()
	}()

	keys, err := keystore.Open(*statePath)
	if err != nil {
		log.Fatalf("fleet: %v", err)
	}
	defer keys.Close()

	var recorders []sim_device.Recorder
	if *mirrorHost != "" {
		mqttClient, err := rabbitmq.NewRabbitMQConn(&rabbitmq.RabbitMQConfig{
			Host:     *mirrorHost,
			Port:     *mirrorPort,
			User:     *mirrorUser,
			Password: *mirrorPass,
			ClientID: *prefix + "-fleet",
		}, ctx)
		if err != nil {
			log.Fatalf("fleet: mqtt: %v", err)
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

	client := api.NewClient(api.BaseURL(*host, *port, *useHTTPS))
	sup := sim_multi.New(client, sim_multi.Config{
		Count:        *count,
		Prefix:       *prefix,
		EnrollSecret: *enrollSecret,
		Interval:     *interval,
		Seed:         *seed,
		Keys:         keys,
		Recorders:    recorders,
		SummaryEvery: *summaryEvery,
	})

	mux := http.NewServeMux()
	mux.Handle("/healthz", sim_multi.NewHealthHandler(sup))
	mux.Handle("/metrics", metrics.Handler())
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(*httpPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("fleet: HTTP listening on :%d", *httpPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = hs.Shutdown(shCtx)
	}()

	sup.Run(ctx)
}
