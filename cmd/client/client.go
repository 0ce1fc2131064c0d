// Command client starts a run on a tdm stream server and prints the trigger
// report once the run finishes.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tdm/pkg/events"
	"github.com/tdm/pkg/stream"
)

type options struct {
	host     string
	seed     uint64
	channels int
	samples  int
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.host, "host", "localhost:8080", "server address")
	flag.Uint64Var(&opts.seed, "seed", 0, "seed for the run (0 keeps the server seed)")
	flag.IntVar(&opts.channels, "channels", 0, "channel count override")
	flag.IntVar(&opts.samples, "samples", 0, "sample count override")
	flag.DurationVar(&opts.timeout, "timeout", time.Minute, "give up after this long")
	flag.Parse()

	log := logrus.WithField("component", "client")
	rep, err := run(opts, log)
	if err != nil {
		log.WithError(err).Fatal("run failed")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(rep)
}

// run requests one session and waits for its report.
func run(opts options, log *logrus.Entry) (*events.Report, error) {
	u := url.URL{Scheme: "ws", Host: opts.host, Path: "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer c.Close()

	req := stream.RunRequest{Type: stream.TypeRun, Channels: opts.channels, Samples: opts.samples}
	if opts.seed != 0 {
		seed := opts.seed
		req.Seed = &seed
	}
	if err := c.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send run request: %w", err)
	}

	c.SetReadDeadline(time.Now().Add(opts.timeout))
	frames := 0
	for {
		var msg struct {
			Type string `json:"type"`
		}
		_, data, err := c.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read after %d frames: %w", frames, err)
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case stream.TypeFrame:
			frames++
		case stream.TypeStatus:
			var st stream.StatusMsg
			if err := json.Unmarshal(data, &st); err != nil {
				return nil, fmt.Errorf("decode status: %w", err)
			}
			if st.Error != "" {
				return nil, errors.New(st.Error)
			}
			log.WithFields(logrus.Fields{"run_id": st.RunID, "running": st.Running}).Info("status")
		case stream.TypeReport:
			var rep stream.ReportMsg
			if err := json.Unmarshal(data, &rep); err != nil {
				return nil, fmt.Errorf("decode report: %w", err)
			}
			log.WithFields(logrus.Fields{"run_id": rep.RunID, "frames": frames}).Info("run complete")
			return rep.Report, nil
		}
	}
}
