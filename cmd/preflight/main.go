// cmd/preflight
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/hamed0406/keepalive/internal/config"
	"github.com/hamed0406/keepalive/internal/probe"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

// check reports on cfg and returns false when a run would abort.
func check(cfg config.Config, loadErr error, out, errOut io.Writer) bool {
	passed := true
	fail := func(msg string) {
		fmt.Fprintln(errOut, "✖", msg)
		passed = false
	}
	warn := func(msg string) { fmt.Fprintln(errOut, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(out, "✔", msg) }

	if loadErr != nil {
		fail(loadErr.Error())
		return false
	}

	ok(fmt.Sprintf("%d target(s), mode=%s", len(cfg.Targets), cfg.Mode))
	for _, t := range cfg.Targets {
		switch {
		case t.HasToken():
			ok(t.ID + " has a credential")
		case cfg.Mode == probe.ModeSpace:
			warn(t.ID + " has no token; only public Spaces can be kept alive this way.")
		default:
			ok(t.ID + " is public")
		}
	}

	ok(fmt.Sprintf("delay %d-%d min, timeout %s, retention %d days", cfg.DelayMin, cfg.DelayMax, cfg.Timeout, cfg.RetentionDays))
	ok("run log: " + cfg.LogFile)

	if cfg.SlackWebhook == "" && !cfg.SNS.Enabled() {
		warn("no notification sink configured; failures will only be logged.")
	}
	if cfg.SlackWebhook != "" {
		ok("slack webhook present")
	}
	if cfg.SNS.Enabled() {
		if cfg.SNS.Region == "" {
			fail("sns.topic_arn is set but sns.region is empty.")
		} else {
			ok("sns topic " + cfg.SNS.TopicArn)
		}
	}

	if cfg.Schedule != "" {
		if _, err := scheduler.ParseSchedule(cfg.Schedule); err != nil {
			fail(err.Error())
		} else {
			ok("schedule " + cfg.Schedule)
		}
	}
	if len(cfg.HTTP.AdminKeys) == 0 {
		warn("http.admin_keys empty; POST /api/run is open when serving.")
	}

	if passed {
		ok("preflight passed")
	}
	return passed
}

func main() {
	path := pflag.StringP("config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.Load(*path)
	if !check(cfg, err, os.Stdout, os.Stderr) {
		os.Exit(1)
	}
}
