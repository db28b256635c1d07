// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package supervisor runs the long-lived parts of ProxyPanel under suture v4.

# Overview

Services are split into two layers so a failing background job never takes
the dashboard down:

	RootSupervisor ("proxypanel")
	├── BackgroundSupervisor ("background-layer")
	│   ├── logtail.Tailer (if LOGTAIL_ENABLED)
	│   └── CronService "stats-refresh" (if STATS_REFRESH_SCHEDULE is set)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. Supervisor events are
logged through the zerolog-backed slog handler from the logging package via
sutureslog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddBackgroundService(tailer)
	return tree.Serve(ctx)

Serve blocks until ctx is cancelled. Every service receives the cancellation
and has ShutdownTimeout to return.
*/
package supervisor
