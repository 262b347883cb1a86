package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rivergarden/training-portal/internal/app"
	"github.com/rivergarden/training-portal/internal/domain"
	httpMW "github.com/rivergarden/training-portal/internal/http/middleware"
)

const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitIncomplete = 3
)

var newApp = app.New

// offline_sync replays progress buffered in the offline store for one user, the same work the
// browser does on its next online page load.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("offline_sync", flag.ContinueOnError)
	fs.SetOutput(stdout)
	var token string
	var dryRun bool
	var timeout time.Duration
	fs.StringVar(&token, "token", os.Getenv("PORTAL_TOKEN"), "portal bearer token of the user (default $PORTAL_TOKEN)")
	fs.BoolVar(&dryRun, "dry-run", false, "list buffered records without sending them")
	fs.DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	token = strings.TrimSpace(token)
	if token == "" {
		fmt.Fprintln(stdout, "missing token: pass -token or set PORTAL_TOKEN")
		return exitUsage
	}

	application, err := newApp()
	if err != nil {
		fmt.Fprintf(stdout, "init app: %v\n", err)
		return exitError
	}
	defer application.Close()

	sess, err := httpMW.NewAuthMiddleware(application.Log, application.Cfg.JWTSecret).SessionFromToken(token)
	if err != nil {
		fmt.Fprintf(stdout, "token: %v\n", err)
		return exitError
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if dryRun {
		entries, err := application.Clients.OfflineStore.Bucket(sess.Namespace()).List(ctx, domain.OfflineProgressKeyPrefix)
		if err != nil {
			fmt.Fprintf(stdout, "list offline records: %v\n", err)
			return exitError
		}
		for _, e := range entries {
			fmt.Fprintf(stdout, "%s\t%s\n", e.Key, e.Value)
		}
		fmt.Fprintf(stdout, "%d record(s) pending for %s\n", len(entries), sess.Subject)
		return exitOK
	}

	report, err := application.Services.OfflineSync.Flush(ctx, *sess)
	if err != nil {
		fmt.Fprintf(stdout, "flush: %v\n", err)
		return exitError
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(stdout, string(out))
	if report.Pending > 0 || len(report.Failed) > 0 {
		return exitIncomplete
	}
	return exitOK
}
