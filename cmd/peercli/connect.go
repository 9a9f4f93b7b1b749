package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/peer"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const runTimeout = 30 * time.Second

// connect runs a node that dials a single peer, waits until the peer is
// verified and then reads commands from stdin.
func connect(c *cli.Context) error {
	n, err := newNode(c)
	if err != nil {
		return err
	}

	n.settings.Legacy.ListenAddresses = nil
	n.settings.Legacy.ConnectPeers = []string{c.String("address")}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- n.run(ctx, c.Duration("progress"), nil)
	}()

	fmt.Printf("Dialling %s\n", c.String("address"))

	p, err := waitForRun(ctx, n, done)
	if err != nil {
		cancel()
		<-done

		return err
	}

	fmt.Printf("Peer %s verified: %s, height %d, services %s\n", p.Address(), p.UserAgent(), p.StartHeight(), p.Services())

	interactiveLoop(os.Stdin, os.Stdout, n)

	cancel()

	return <-done
}

func waitForRun(ctx context.Context, n *node, done <-chan error) (*peer.Peer, error) {
	timeout := time.NewTimer(runTimeout)
	defer timeout.Stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err == nil {
				err = errors.NewServiceError("node stopped before the peer was verified")
			}

			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, errors.NewNetworkTimeoutError("peer not verified within %s", runTimeout)
		case <-ticker.C:
		}

		for _, p := range n.server.PeerManager().Peers() {
			if p.State() == peer.StateRun {
				return p, nil
			}
		}
	}
}

// interactiveLoop reads one command per line until exit or end of input.
// The prompt is only shown on a terminal.
func interactiveLoop(in *os.File, out io.Writer, n *node) {
	prompt := term.IsTerminal(int(in.Fd())) //nolint:gosec // file descriptors fit in int

	reader := bufio.NewReader(in)

	for {
		if prompt {
			fmt.Fprint(out, "peercli> ")
		}

		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line == "exit" {
			return
		}

		if line != "" {
			if cmdErr := handleCommand(out, n, line); cmdErr != nil {
				fmt.Fprintln(out, "error:", cmdErr)
			}
		}

		if err != nil {
			return
		}
	}
}

func handleCommand(out io.Writer, n *node, line string) error {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "status":
		p := n.progress()
		fmt.Fprintf(out, "headers %d\ncfheaders %d\ncfilters %d\npeers %d in, %d out\nmempool %d\n",
			p.Headers, p.FilterHeaders, p.Filters, p.Inbound, p.Outbound, p.Mempool)

	case "peers":
		for _, p := range n.server.PeerManager().Peers() {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\theight %d\tping %dus\n",
				p.ID(), p.Address(), p.State(), p.UserAgent(), p.LastBlock(), p.PingMicros())
		}

	case "addrs":
		for _, addr := range n.server.PeerManager().Addresses() {
			fmt.Fprintln(out, addr)
		}

	case "mempool":
		for _, txid := range n.mempool.Dump() {
			fmt.Fprintln(out, txid)
		}

	case "send":
		if len(args) == 0 {
			return errors.NewInvalidArgumentError("usage: send <ping|getaddr|mempool|feefilter> [arg]")
		}

		return sendMessage(out, n, args[0], args[1:]...)

	default:
		return errors.NewInvalidArgumentError("unknown command %q", cmd)
	}

	return nil
}

// sendMessage queues a message on every running peer.
func sendMessage(out io.Writer, n *node, msgType string, args ...string) error {
	var payload wire.Payload

	switch msgType {
	case "ping":
		nonce := uint64(0)

		if len(args) > 0 {
			parsed, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.NewInvalidArgumentError("invalid nonce %q", args[0], err)
			}

			nonce = parsed
		}

		payload = wire.NewMsgPing(nonce)
	case "getaddr":
		payload = &wire.MsgGetAddr{}
	case "mempool":
		payload = &wire.MsgMemPool{}
	case "feefilter":
		if len(args) == 0 {
			return errors.NewInvalidArgumentError("usage: send feefilter <satoshis per kB>")
		}

		fee, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.NewInvalidArgumentError("invalid fee %q", args[0], err)
		}

		payload = wire.NewMsgFeeFilter(fee)
	default:
		return errors.NewInvalidArgumentError("cannot send %q", msgType)
	}

	sent := 0

	for _, p := range n.server.PeerManager().Peers() {
		if p.State() != peer.StateRun {
			continue
		}

		if err := <-p.QueueMessage(payload); err != nil {
			fmt.Fprintf(out, "peer %d: %v\n", p.ID(), err)
			continue
		}

		sent++
	}

	fmt.Fprintf(out, "%s sent to %d peers\n", msgType, sent)

	return nil
}
