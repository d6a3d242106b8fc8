package recorder

import (
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/KongGithubDev/MushIoT/internal/model"
)

const moistureMeasurement = "soil_moisture"

// Influx batches readings into a bucket through the non-blocking write
// API. Write errors surface on the error channel, not per call, so
// they are only logged.
type Influx struct {
	client influxdb2.Client
	api    api.WriteAPI
	now    func() time.Time
}

func NewInflux(url, token, org, bucket string) *Influx {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(10).
		SetFlushInterval(200)
	client := influxdb2.NewClientWithOptions(url, token, opts)
	w := client.WriteAPI(org, bucket)
	go func() {
		for err := range w.Errors() {
			if err != nil {
				log.Printf("influx write error: %v", err)
			}
		}
	}()
	return &Influx{client: client, api: w, now: time.Now}
}

func (i *Influx) Record(r model.Reading) {
	point := influxdb2.NewPoint(
		moistureMeasurement,
		map[string]string{"device": r.DeviceID},
		map[string]interface{}{
			"moisture": r.Moisture,
			"raw":      r.Payload.Raw,
			"pump_on":  r.Payload.PumpOn,
		},
		i.now(),
	)
	i.api.WritePoint(point)
}

// Close flushes whatever is still batched and tears the client down.
func (i *Influx) Close() {
	i.api.Flush()
	i.client.Close()
}
