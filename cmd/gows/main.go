// Command gows is a small demonstration client/server for the websocket
// package: serve accepts connections and echoes every message back;
// dial connects to a server and sends lines read from stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/coregx/gows/websocket"
)

func main() {
	cmd := &cli.Command{
		Name:  "gows",
		Usage: "WebSocket (RFC 6455) demo client and server",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pretty", Usage: "human-readable console logging, instead of JSON"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			dialCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gows: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cli.Command) zerolog.Logger {
	if cmd.Bool("pretty") {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "accept WebSocket connections and echo every message back",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "address to listen on"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger(cmd)
			addr := cmd.String("addr")

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			defer ln.Close()
			log.Info().Str("addr", addr).Msg("listening")

			reg := websocket.NewRegistry()
			for {
				nc, err := ln.Accept()
				if err != nil {
					return err
				}
				go handleConn(ctx, nc, log, reg)
			}
		},
	}
}

func handleConn(ctx context.Context, nc net.Conn, log zerolog.Logger, reg *websocket.Registry) {
	conn, err := websocket.Accept(nc, websocket.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Msg("handshake failed")
		nc.Close()
		return
	}
	reg.Register(conn)
	defer reg.Unregister(conn)

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			return
		}
		if err := conn.Send(ctx, msg); err != nil {
			return
		}
	}
}

func dialCommand() *cli.Command {
	return &cli.Command{
		Name:  "dial",
		Usage: "connect to a WebSocket server and send lines read from stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Required: true, Usage: "server address (host:port)"},
			&cli.StringFlag{Name: "path", Value: "/", Usage: "request path"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger(cmd)

			conn, err := websocket.Connect(ctx, cmd.String("addr"), cmd.String("path"), websocket.WithLogger(log))
			if err != nil {
				return err
			}
			defer conn.Stop(ctx)

			go func() {
				for {
					msg, err := conn.Receive(ctx)
					if err != nil {
						return
					}
					if text, ok := msg.Text(); ok {
						fmt.Println(text.String())
					}
				}
			}()

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if err := conn.Send(ctx, websocket.NewTextMessage(websocket.NewText(scanner.Text()))); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}
