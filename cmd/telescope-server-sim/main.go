package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"telescope/pkg/simulator"
	"telescope/pkg/telescope"
)

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if c.NArg() < 1 {
		return cli.ShowAppHelp(c)
	}

	port, err := strconv.Atoi(c.Args().Get(0))
	if err != nil || !telescope.IsValidPort(port) {
		return fmt.Errorf("invalid port %q", c.Args().Get(0))
	}
	if serialPort := c.Args().Get(1); serialPort != "" {
		log.Infof("Simulating the device on %s", serialPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := simulator.New(log.WithField("component", "simulator"))
	srv.Interval = c.Duration("interval")
	return srv.ListenAndServe(ctx, net.JoinHostPort(c.String("bind"), strconv.Itoa(port)))
}

func main() {
	app := cli.App{
		Name:      "telescope-server-sim",
		Usage:     "Simulated telescope server speaking the Stellarium protocol",
		ArgsUsage: "<port> [serial port]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:  "bind",
				Usage: "Address to listen on",
				Value: "127.0.0.1",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Position report interval",
				Value: simulator.DefaultInterval,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
