package sim_device

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/model"
	"github.com/KongGithubDev/MushIoT/pkg/mailbox"
)

// Listener consumes the per-device SSE stream and turns backend pushes
// into loop wake-ups. Commands carrying a settings patch land in the
// pending mailbox; "settings" events only wake the loop, which
// refreshes over HTTP anyway.
type Listener struct {
	client  *api.Client
	device  model.Device
	pending *mailbox.Mailbox[model.SettingsPatch]
	wake    *mailbox.Signal
}

func NewListener(client *api.Client, device model.Device, pending *mailbox.Mailbox[model.SettingsPatch], wake *mailbox.Signal) *Listener {
	return &Listener{client: client, device: device, pending: pending, wake: wake}
}

// Listen opens the stream once and consumes it until EOF or error.
// The loop keeps running on plain polling when the stream dies.
func (l *Listener) Listen(ctx context.Context) {
	log.Printf("sse: connect %s/api/devices/%s/stream", l.client.Base(), l.device.ID)
	body, err := l.client.OpenStream(ctx, l.device.ID, l.device.APIKey)
	if err != nil {
		log.Printf("sse: %v", err)
		return
	}
	defer body.Close()
	l.consume(body)
}

func (l *Listener) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	lastEvent := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "" || strings.HasPrefix(line, ":"):
			// blank keep-alives and comments
		case strings.HasPrefix(line, "event:"):
			lastEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			log.Printf("sse: event %s", lastEvent)
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			log.Printf("sse: data %s", data)
			l.dispatch(lastEvent, data)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("sse: stream closed: %v", err)
	}
}

func (l *Listener) dispatch(event, data string) {
	switch event {
	case "settings":
		l.wake.Raise()
		log.Printf("sse: wake by settings")
	case "command":
		patch, ok := decodeCommandPatch(data)
		if !ok {
			return
		}
		l.pending.Set(patch)
		l.wake.Raise()
		log.Printf("sse: wake by command")
	}
}

// decodeCommandPatch extracts the patch object from a command event.
// Commands without an object patch (absent, null, array) are dropped.
func decodeCommandPatch(data string) (model.SettingsPatch, bool) {
	var env struct {
		Patch json.RawMessage `json:"patch"`
	}
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		log.Printf("sse: bad command: %v", err)
		return model.SettingsPatch{}, false
	}
	raw := bytes.TrimSpace(env.Patch)
	if len(raw) == 0 || raw[0] != '{' {
		return model.SettingsPatch{}, false
	}
	patch, err := model.DecodeSettingsPatch(raw)
	if err != nil {
		log.Printf("sse: bad patch: %v", err)
		return model.SettingsPatch{}, false
	}
	return patch, true
}
