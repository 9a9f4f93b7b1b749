package main

import (
	"fmt"
	"net/http"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/util/health"
	"github.com/urfave/cli/v2"
)

func checkHealth(c *cli.Context) error {
	path := "/health/readiness"
	if c.Bool("liveness") {
		path = "/health/liveness"
	}

	status, body, err := health.CheckHTTPServer(c.String("address"), path)(c.Context, c.Bool("liveness"))

	fmt.Fprintln(c.App.Writer, body)

	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return errors.NewServiceUnavailableError("node reports status %d", status)
	}

	return nil
}
