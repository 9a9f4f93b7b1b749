package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
)

func decode(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.NewInvalidArgumentError("usage: peercli decode <hex>")
	}

	return decodeHex(c.App.Writer, c.Args().First())
}

// decodeHex prints the header and payload of a framed wire message.
func decodeHex(out io.Writer, s string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return errors.NewInvalidArgumentError("message is not hex", err)
	}

	if len(raw) < wire.MessageHeaderSize {
		return errors.NewInvalidArgumentError("message is %d bytes, shorter than a header", len(raw))
	}

	msg, err := wire.Decode(raw[:wire.MessageHeaderSize], raw[wire.MessageHeaderSize:])
	if err != nil {
		return err
	}

	cfg := spew.ConfigState{Indent: "  ", DisableMethods: true, DisablePointerAddresses: true}

	fmt.Fprintf(out, "command: %s\nnetwork: %08x\nlength:  %d\n", msg.Name(), msg.Network, len(msg.PayloadBytes()))
	cfg.Fdump(out, msg.Payload)

	return nil
}
