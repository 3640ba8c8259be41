package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadspace/featureflag"
	quadspacehttp "github.com/aukilabs/quadspace/http"
	"github.com/aukilabs/quadspace/models"
	"github.com/aukilabs/quadspace/quads"
	"github.com/aukilabs/quadspace/smoketest"
	qwebsocket "github.com/aukilabs/quadspace/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Quadspace version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadspace_info",
		Help:        "Quadspace information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADSPACE_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"QUADSPACE_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"QUADSPACE_PUBLIC_ENDPOINT"      help:"The public endpoint where this Quadspace server is reachable."`
	LogLevel           string        `cli:""        env:"QUADSPACE_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADSPACE_LOG_INDENT"           help:"Indent logs."`
	SyncClockInterval  time.Duration `cli:",hidden" env:"QUADSPACE_SYNC_CLOCK_INTERVAL"  help:"Client sync clock (heartbeat) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADSPACE_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"QUADSPACE_FRAME_DURATION"       help:"The duration of a session frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADSPACE_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Grid               gridConfig    `cli:""        env:"-"                              help:"Session grid configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADSPACE_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

type gridConfig struct {
	Rows           int      `cli:""        env:"QUADSPACE_GRID_ROWS"            help:"The number of rows in a session grid."`
	Cols           int      `cli:""        env:"QUADSPACE_GRID_COLS"            help:"The number of cols in a session grid."`
	QuadrantWidth  float64  `cli:""        env:"QUADSPACE_GRID_QUADRANT_WIDTH"  help:"The width of a quadrant in world units."`
	QuadrantHeight float64  `cli:""        env:"QUADSPACE_GRID_QUADRANT_HEIGHT" help:"The height of a quadrant in world units."`
	Groups         []string `cli:""        env:"QUADSPACE_GRID_GROUPS"          help:"Comma separated group names tracked by a session grid."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"QUADSPACE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"QUADSPACE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"QUADSPACE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"QUADSPACE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Grid: gridConfig{
			Rows:           quads.DefaultNumRows,
			Cols:           quads.DefaultNumCols,
			QuadrantWidth:  quads.DefaultQuadrantWidth,
			QuadrantHeight: quads.DefaultQuadrantHeight,
			Groups:         []string{"solid", "character"},
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Quadspace server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "quadspace",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	var service http.ServeMux

	service.Handle("/health", quadspacehttp.HandleWithCORS(http.HandlerFunc(quadspacehttp.HandleHealthCheck)))
	service.Handle("/version", quadspacehttp.HandleWithCORS(http.HandlerFunc(quadspacehttp.HandleVersion(version))))

	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Quadspace %s", version),
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("endpoint", res.Endpoint).
				WithTag("ok", res.OK).
				WithTag("duration", res.Duration).
				Info("smoke test completed")
			return nil
		},
	}))

	readinessCheck := func() bool {
		return true
	}
	service.Handle("/ready", quadspacehttp.HandleWithCORS(http.HandlerFunc(quadspacehttp.HandleReadyCheck(readinessCheck))))

	sessions := models.SessionStore{}

	service.Handle("/", quadspacehttp.HandleWithCORS(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh qwebsocket.Handler = &qwebsocket.RealtimeHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				FrameDuration:           conf.FrameDuration,
				Sessions:                &sessions,
				Grid: quads.Options{
					NumRows:        conf.Grid.Rows,
					NumCols:        conf.Grid.Cols,
					QuadrantWidth:  conf.Grid.QuadrantWidth,
					QuadrantHeight: conf.Grid.QuadrantHeight,
					GroupNames:     conf.Grid.Groups,
				},
				FeatureFlags: featureflag.New(conf.FeatureFlags),
			}
			h := qwebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = qwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			qwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", quadspacehttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", quadspacehttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("grid_rows", conf.Grid.Rows).
		WithTag("grid_cols", conf.Grid.Cols).
		Info("starting quadspace server")

	quadspacehttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			quadspacehttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if len(conf.Grid.Groups) == 0 {
		return errors.New("no grid groups configured")
	}

	return nil
}
