// Command atckernel runs the surveillance-and-separation kernel against a
// fixed population of aircraft loaded from a CSV file, serving operator
// commands on stdin until interrupted.
//
// Grounded on the teacher's cmd/decimalniner/main.go: os/signal-based
// graceful shutdown and log.Fatalf on unrecoverable startup errors,
// adapted to the kernel's own Start/Stop lifecycle instead of a
// WebSocket dial.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/kernel"
	"github.com/curbz/atc-kernel/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file overriding the built-in defaults")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <aircraft_data_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 1
	}
	dataFile := flag.Arg(0)

	logRoot := logging.New(*debug)
	log := logging.For(logRoot, "main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return 1
	}

	k, err := kernel.New(cfg, dataFile, nil, logRoot)
	if err != nil {
		log.WithError(err).Error("failed to initialize kernel")
		return 1
	}

	k.Start()
	log.Info("kernel running; press Ctrl+C to shut down")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	commands := make(chan string)
	go readCommands(commands)

	for {
		select {
		case <-interrupt:
			log.Info("shutdown signal received")
			k.Stop()
			return 0

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if err := k.SubmitCommand(line); err != nil {
				log.WithError(err).WithField("command", line).Warn("command queue rejected line")
			}
		}
	}
}

// readCommands feeds trimmed, non-empty stdin lines to the kernel's
// operator-command surface until stdin is closed; the kernel tokenizes
// each line when it dispatches it.
func readCommands(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out <- line
	}
}
