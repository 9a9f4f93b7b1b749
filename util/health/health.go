// Package health combines component checks into one JSON report and serves
// it over HTTP.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// CheckFunc reports a component's status. With checkLiveness set it only
// tells whether the component runs; otherwise whether it can do useful work.
type CheckFunc func(ctx context.Context, checkLiveness bool) (int, string, error)

type Check struct {
	Name  string
	Check CheckFunc
}

// CheckAll runs every check. The overall status is 503 if any of them fails.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	var (
		overallStatus = http.StatusOK
		messages      = make([]string, 0, len(checks))
	)

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overallStatus = http.StatusServiceUnavailable
		}

		var msg string

		// nested reports are embedded as they are
		if len(message) > 0 && message[0] == '{' && message[len(message)-1] == '}' {
			msg = fmt.Sprintf(`{"resource": %q, "status": "%d", "error": %q, "dependencies": [%s]}`, check.Name, status, errString(err), message)
		} else {
			msg = fmt.Sprintf(`{"resource": %q, "status": "%d", "error": %q, "message": %q}`, check.Name, status, errString(err), message)
		}

		messages = append(messages, msg)
	}

	return overallStatus, fmt.Sprintf(`{"status":"%d", "dependencies":[%s]}`, overallStatus, strings.Join(messages, ",\n")), nil
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}

	return err.Error()
}

// Handler serves check as JSON, answering with the status it reports.
func Handler(check CheckFunc, checkLiveness bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, details, err := check(r.Context(), checkLiveness)
		if err != nil && status == http.StatusOK {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(details))
	}
}
