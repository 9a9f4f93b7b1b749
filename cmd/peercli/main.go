// Command peercli runs a compact filter peer node, or a single connection
// to one remote node, and offers a few wire debugging helpers.
//
// Usage:
//
//	peercli node [--listen addr]... [--connect addr]... [--http addr]
//	peercli connect --address host:port
//	peercli decode <hex message>
//	peercli health --address http://host:port
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	userAgentName    = "peercli"
	userAgentVersion = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:  "peercli",
		Usage: "run and inspect compact filter peers",
		Commands: []*cli.Command{
			{
				Name:   "node",
				Usage:  "run a node until interrupted",
				Action: runNode,
				Flags:  nodeFlags(),
			},
			{
				Name:   "connect",
				Usage:  "connect to one peer and inspect it interactively",
				Action: connect,
				Flags: append(nodeFlags(), &cli.StringFlag{
					Name:     "address",
					Usage:    "address of the remote peer",
					Required: true,
				}),
			},
			{
				Name:      "decode",
				Usage:     "decode a hex encoded wire message, header included",
				ArgsUsage: "<hex>",
				Action:    decode,
			},
			{
				Name:   "health",
				Usage:  "query the readiness of a running node",
				Action: checkHealth,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "base url of the node's http endpoint",
						Value: "http://localhost:9091",
					},
					&cli.BoolFlag{
						Name:  "liveness",
						Usage: "only check that the node runs",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func nodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "listen",
			Usage: "inbound endpoint, repeatable (overrides legacy_listen_addresses)",
		},
		&cli.StringSliceFlag{
			Name:  "connect",
			Usage: "peer to keep connected, repeatable (overrides legacy_connect_peers)",
		},
		&cli.StringFlag{
			Name:  "transport",
			Usage: "tcp or zmq (overrides legacy_transport)",
		},
		&cli.StringFlag{
			Name:  "http",
			Usage: "serve metrics and health on this address (overrides metrics_listenAddress)",
		},
		&cli.BoolFlag{
			Name:  "fetch-blocks",
			Usage: "download full blocks as well as filters",
		},
		&cli.DurationFlag{
			Name:  "progress",
			Usage: "interval between progress reports, 0 to disable",
			Value: defaultProgressInterval,
		},
	}
}
