// Command mdcd is the MDC daemon: it listens for client channels, admits
// inbound frames into a FIFO, and dispatches them to configured back-end
// service handlers. Flags follow the teacher's own cmd/canopen idiom:
// stdlib flag, never cobra.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/pdsmart/mdc/pkg/config"
	"github.com/pdsmart/mdc/pkg/protocol"
	"github.com/pdsmart/mdc/pkg/server"
	"github.com/pdsmart/mdc/pkg/services"
	"github.com/pdsmart/mdc/pkg/services/syscmd"

	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
	_ "github.com/pdsmart/mdc/pkg/compress/zstd"
	_ "github.com/pdsmart/mdc/pkg/transport/tcp"
)

func main() {
	configPath := flag.String("config", "", "path to an ini config file (optional)")
	listenAddr := flag.String("listen", ":7890", "address to listen on")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	addr := *listenAddr
	if *configPath != "" {
		d, err := config.LoadDaemon(*configPath)
		if err != nil {
			log.Fatalf("[MDCD] loading config: %v", err)
		}
		addr = d.ListenAddr
	}

	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, syscmd.NewHandler())

	srv, err := server.New("tcp", handlers,
		server.WithLogger(log.StandardLogger()),
		server.WithControlSink(func(event string, channelID uint32) {
			log.Infof("[MDCD][CONTROL][x%x] %s", channelID, event)
		}))
	if err != nil {
		log.Fatalf("[MDCD] creating server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("[MDCD] shutdown signal received")
		cancel()
	}()

	log.Infof("[MDCD] listening on %s", addr)
	if err := srv.Serve(ctx, addr); err != nil && ctx.Err() == nil {
		log.Fatalf("[MDCD] serve: %v", err)
	}
}
