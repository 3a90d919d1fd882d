package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/voicebridge/internal/audio"
	"github.com/ent0n29/voicebridge/internal/observability"
	"github.com/ent0n29/voicebridge/internal/protocol"
)

// options drives one replay: two devices join a session and the sender
// pushes clips while the receiver times each voiceReceived.
type options struct {
	BaseURL    string        `help:"Relay base URL." default:"http://127.0.0.1:3000"`
	SessionKey string        `help:"Session key (random when empty)." default:""`
	From       string        `help:"Sender language." default:"en-US"`
	To         string        `help:"Receiver language." default:"es-ES"`
	Clips      int           `help:"Number of clips to send." default:"10"`
	WAV        string        `help:"16-bit PCM WAV to send instead of a synthetic tone." default:""`
	ToneMS     int           `help:"Synthetic tone length in milliseconds." default:"1200"`
	Interval   time.Duration `help:"Pause between clips." default:"200ms"`
	Timeout    time.Duration `help:"Budget for every clip to come back." default:"30s"`
	Verbose    bool          `help:"Print per-clip results." default:"true" negatable:""`
}

type report struct {
	Sent       int
	Delivered  int
	Failed     int
	OutOfOrder int
	P50        time.Duration
	P95        time.Duration
	Max        time.Duration
	Errors     map[string]int
}

type wsEnvelope struct {
	Type           string          `json:"type"`
	Status         string          `json:"status,omitempty"`
	Message        string          `json:"message,omitempty"`
	Code           string          `json:"code,omitempty"`
	TranslatedText string          `json:"translatedText,omitempty"`
	Timestamp      json.RawMessage `json:"timestamp,omitempty"`
	Seq            uint64          `json:"seq,omitempty"`
}

type arrival struct {
	clip int
	seq  uint64
	at   time.Time
	text string
}

func main() {
	var opts options
	kong.Parse(&opts,
		kong.Name("perfrelay"),
		kong.Description("Replay voice clips through a running relay and report end-to-end latency."),
	)
	if err := opts.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "perfrelay: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout+time.Duration(opts.Clips)*opts.Interval+10*time.Second)
	defer cancel()

	rep, err := run(ctx, opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfrelay: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, rep)
	printServerStages(ctx, os.Stdout, opts.BaseURL)
	if rep.Delivered < rep.Sent {
		os.Exit(1)
	}
}

func (o *options) validate() error {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if o.Clips <= 0 {
		return fmt.Errorf("clips must be > 0")
	}
	if o.ToneMS < 50 {
		o.ToneMS = 50
	}
	if o.Interval < 0 {
		o.Interval = 0
	}
	if o.Timeout < time.Second {
		o.Timeout = time.Second
	}
	if strings.TrimSpace(o.SessionKey) == "" {
		o.SessionKey = "perf-" + uuid.NewString()[:8]
	}
	return nil
}

func run(ctx context.Context, opts options, out io.Writer) (report, error) {
	clip, err := loadClip(opts)
	if err != nil {
		return report{}, fmt.Errorf("prepare clip: %w", err)
	}
	wsURL, err := wsURLFor(opts.BaseURL)
	if err != nil {
		return report{}, fmt.Errorf("build ws URL: %w", err)
	}

	sender, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return report{}, fmt.Errorf("dial sender: %w", err)
	}
	defer sender.Close()
	receiver, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return report{}, fmt.Errorf("dial receiver: %w", err)
	}
	defer receiver.Close()

	if err := join(sender, opts.SessionKey, opts.From); err != nil {
		return report{}, fmt.Errorf("sender join: %w", err)
	}
	if err := awaitStatus(sender, "waiting", opts.Timeout); err != nil {
		return report{}, fmt.Errorf("sender join: %w", err)
	}
	if err := join(receiver, opts.SessionKey, opts.To); err != nil {
		return report{}, fmt.Errorf("receiver join: %w", err)
	}
	for name, ws := range map[string]*websocket.Conn{"sender": sender, "receiver": receiver} {
		if err := awaitStatus(ws, "connected", opts.Timeout); err != nil {
			return report{}, fmt.Errorf("%s await connected: %w", name, err)
		}
	}
	if opts.Verbose {
		fmt.Fprintf(out, "perfrelay: session=%s %s->%s clips=%d bytes=%d\n", opts.SessionKey, opts.From, opts.To, opts.Clips, len(clip))
	}

	arrivals := make(chan arrival, opts.Clips)
	failures := make(chan string, opts.Clips)
	go readReceiver(receiver, arrivals)
	go readSender(sender, failures)

	payload := base64.StdEncoding.EncodeToString(clip)
	sentAt := make([]time.Time, opts.Clips+1)
	for i := 1; i <= opts.Clips; i++ {
		sentAt[i] = time.Now()
		msg := protocol.VoiceTransfer{
			Type:        protocol.TypeVoiceTransfer,
			AudioBase64: payload,
			Timestamp:   json.RawMessage(strconv.Itoa(i)),
		}
		if err := sender.WriteJSON(msg); err != nil {
			return report{}, fmt.Errorf("clip %d send: %w", i, err)
		}
		if opts.Interval > 0 && i < opts.Clips {
			select {
			case <-ctx.Done():
				return report{}, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}
	}

	rep := report{Sent: opts.Clips, Errors: map[string]int{}}
	var latencies []time.Duration
	var lastSeq uint64
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	for rep.Delivered+rep.Failed < rep.Sent {
		select {
		case a := <-arrivals:
			if a.clip < 1 || a.clip > opts.Clips {
				continue
			}
			d := a.at.Sub(sentAt[a.clip])
			latencies = append(latencies, d)
			rep.Delivered++
			if a.seq < lastSeq {
				rep.OutOfOrder++
			}
			lastSeq = max(lastSeq, a.seq)
			if opts.Verbose {
				fmt.Fprintf(out, "perfrelay: clip %d seq=%d latency=%s text=%q\n", a.clip, a.seq, d.Round(time.Millisecond), a.text)
			}
		case code := <-failures:
			rep.Failed++
			rep.Errors[code]++
			if opts.Verbose {
				fmt.Fprintf(out, "perfrelay: clip failed code=%s\n", code)
			}
		case <-deadline.C:
			rep.summarize(latencies)
			return rep, nil
		case <-ctx.Done():
			return report{}, ctx.Err()
		}
	}
	rep.summarize(latencies)
	return rep, nil
}

func (r *report) summarize(latencies []time.Duration) {
	if len(latencies) == 0 {
		return
	}
	slices.Sort(latencies)
	r.P50 = percentile(latencies, 0.50)
	r.P95 = percentile(latencies, 0.95)
	r.Max = latencies[len(latencies)-1]
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}

func readReceiver(ws *websocket.Conn, arrivals chan<- arrival) {
	for {
		var env wsEnvelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != string(protocol.TypeVoiceReceived) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(env.Timestamp)))
		if err != nil {
			continue
		}
		arrivals <- arrival{clip: n, seq: env.Seq, at: time.Now(), text: env.TranslatedText}
	}
}

func readSender(ws *websocket.Conn, failures chan<- string) {
	for {
		var env wsEnvelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Type == string(protocol.TypeError) {
			code := env.Code
			if code == "" {
				code = "unknown"
			}
			select {
			case failures <- code:
			default:
			}
		}
	}
}

func join(ws *websocket.Conn, key, language string) error {
	return ws.WriteJSON(protocol.JoinSession{
		Type:       protocol.TypeJoinSession,
		SessionKey: key,
		Language:   language,
	})
}

func awaitStatus(ws *websocket.Conn, want string, timeout time.Duration) error {
	if err := ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer ws.SetReadDeadline(time.Time{})
	for {
		var env wsEnvelope
		if err := ws.ReadJSON(&env); err != nil {
			return err
		}
		switch env.Type {
		case string(protocol.TypeSessionStatus):
			if env.Status == want {
				return nil
			}
			if env.Status == "error" {
				return fmt.Errorf("session rejected: %s", env.Message)
			}
		case string(protocol.TypeError):
			return fmt.Errorf("server error code=%s: %s", env.Code, env.Message)
		}
	}
}

func wsURLFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func loadClip(opts options) ([]byte, error) {
	if strings.TrimSpace(opts.WAV) == "" {
		return audio.EncodeWAVPCM16LE(tonePCM16(440, opts.ToneMS, audio.DefaultSampleRate), audio.DefaultSampleRate), nil
	}
	data, err := os.ReadFile(opts.WAV)
	if err != nil {
		return nil, err
	}
	pcm, rate, err := decodeWAVPCM16(data)
	if err != nil {
		return nil, err
	}
	return audio.EncodeWAVPCM16LE(pcm, rate), nil
}

func printReport(w io.Writer, r report) {
	fmt.Fprintf(w, "perfrelay: sent=%d delivered=%d failed=%d out_of_order=%d\n", r.Sent, r.Delivered, r.Failed, r.OutOfOrder)
	fmt.Fprintf(w, "perfrelay: latency p50=%s p95=%s max=%s\n",
		r.P50.Round(time.Millisecond), r.P95.Round(time.Millisecond), r.Max.Round(time.Millisecond))
	for code, n := range r.Errors {
		fmt.Fprintf(w, "perfrelay: error %s x%d\n", code, n)
	}
}

func printServerStages(ctx context.Context, w io.Writer, baseURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return
	}
	res, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return
	}
	defer res.Body.Close()
	var snap observability.LatencySnapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return
	}
	for _, s := range snap.Stages {
		fmt.Fprintf(w, "perfrelay: server %-10s n=%d p50=%.1fms p95=%.1fms target=%.0fms\n", s.Stage, s.Samples, s.P50MS, s.P95MS, s.TargetP95MS)
	}
}
