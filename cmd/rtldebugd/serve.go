package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/hwdebug/rtlserver/agent"
	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/eventlog"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/peripherals"
	"github.com/hwdebug/rtlserver/server"
	"github.com/hwdebug/rtlserver/spool"
	"github.com/hwdebug/rtlserver/transport"
	"github.com/hwdebug/rtlserver/vtime"
)

var (
	flagStdio      bool
	flagPort       int
	flagHealthPort int
	flagEventLog   string
	flagCommands   string
	flagSpoolDB    string
	flagTickPeriod time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debug server against the built-in demo design",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagStdio, "stdio", envInt("RTLDEBUG_STDIO", 0) != 0,
		"serve the debug protocol over stdin/stdout instead of TCP (env RTLDEBUG_STDIO)")
	serveCmd.Flags().IntVar(&flagPort, "port", envInt("RTLDEBUG_PORT", transport.DefaultPort),
		"TCP port to listen on")
	serveCmd.Flags().IntVar(&flagHealthPort, "health-port", envInt("RTLDEBUG_HEALTH_PORT", 0),
		"loopback port for the JSON health router, 0 to disable")
	serveCmd.Flags().StringVar(&flagEventLog, "event-log", os.Getenv("RTLDEBUG_EVENT_LOG"),
		"path to write peripheral event log JSON to, empty to disable")
	serveCmd.Flags().StringVar(&flagCommands, "input-commands", os.Getenv("RTLDEBUG_INPUT_COMMANDS"),
		"path to an input-command file to replay into peripherals, empty to disable")
	serveCmd.Flags().StringVar(&flagSpoolDB, "spool-db", os.Getenv("RTLDEBUG_SPOOL_DB"),
		"path to a SQLite database to persist the sample spool in, empty to keep it in memory only")
	serveCmd.Flags().DurationVar(&flagTickPeriod, "tick-period", time.Millisecond,
		"wall-clock interval between simulation ticks in the demo design")

	rootCmd.AddCommand(serveCmd)
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func runServe(cmd *cobra.Command, _ []string) error {
	sessionID := xid.New()
	log.Printf("rtldebugd: starting session %s", sessionID)

	var evLog *eventlog.Logger
	if flagEventLog != "" {
		evLog = eventlog.NewLogger(flagEventLog)
		atexit.Register(func() {
			if err := evLog.Close(); err != nil {
				log.Printf("rtldebugd: failed to flush event log: %v", err)
			}
		})
	}

	var player *eventlog.Player
	if flagCommands != "" {
		p, err := eventlog.LoadPlayer(flagCommands)
		if err != nil {
			return err
		}
		player = p
	}

	m, design := buildDemoModel()
	periphs, err := buildDemoPeripherals(m, evLog, player)
	if err != nil {
		return err
	}

	sp, err := buildSpool(m)
	if err != nil {
		return err
	}
	ag := agent.New(m, sp, design, diag.StderrPerformer{})

	link, err := buildLink()
	if err != nil {
		return err
	}

	srv := server.New(link, ag, log.Default())

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	uri := ag.StartDebugging(ctx, link, func(ctx context.Context) {
		srv.Start(ctx)
		srv.Run(ctx)
	})
	log.Printf("rtldebugd: debug server listening at %s", uri)

	go driveDesign(ctx, ag, periphs)

	if flagHealthPort > 0 {
		go serveHealth(flagHealthPort)
	}

	<-ctx.Done()
	ag.Finish()
	ag.Close()
	return nil
}

// buildSpool returns an in-memory spool, or a SQLite-backed durable one
// (reloading any timeline left over from a previous run) when
// --spool-db names a database path.
func buildSpool(m *model.Model) (*spool.Spool, error) {
	if flagSpoolDB == "" {
		return spool.New(m), nil
	}

	backend, err := spool.NewSQLiteBackend(flagSpoolDB)
	if err != nil {
		return nil, err
	}
	atexit.Register(func() {
		if err := backend.Close(); err != nil {
			log.Printf("rtldebugd: failed to flush spool database: %v", err)
		}
	})

	return spool.NewDurable(m, backend)
}

func buildLink() (transport.Link, error) {
	if flagStdio {
		return transport.NewStdioLink(os.Stdin, os.Stdout), nil
	}
	return transport.NewTCPLink(flagPort), nil
}

// driveDesign runs the demo design's step loop on its own goroutine,
// standing in for the simulation thread a generated design would run on
// its own, stepping every registered peripheral alongside the agent.
func driveDesign(ctx context.Context, ag *agent.Agent, periphs []peripherals.Peripheral) {
	ticker := time.NewTicker(flagTickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := ag.Step(); err != nil {
			log.Printf("rtldebugd: step failed: %v", err)
			return
		}
		ag.Advance(vtime.Time(1_000_000)) // one simulated nanosecond per tick

		now := ag.Shared.Read().LatestTime
		for _, p := range periphs {
			if err := p.Step(now); err != nil {
				log.Printf("rtldebugd: peripheral step failed: %v", err)
			}
		}
	}
}
