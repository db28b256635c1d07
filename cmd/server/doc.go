// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package main is the entry point for the ProxyPanel server.

ProxyPanel is a server-rendered dashboard in front of a proxy service panel
API. Administrators manage users, nodes and their services, the proxy core and
certificates; subscribers use the optional client portal to check their
account, buy plans and download client configs.

# Application Architecture

	RootSupervisor ("proxypanel")
	├── BackgroundSupervisor ("background-layer")
	│   ├── Log tail (LOGTAIL_ENABLED)
	│   └── Statistics refresh (STATS_REFRESH_SCHEDULE)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Initialization order:

 1. Configuration: koanf defaults, YAML file, environment variables
 2. Logging: zerolog from LOG_LEVEL, LOG_FORMAT, LOG_CALLER
 3. Token store: badger directory or memory
 4. Panel clients: one per actor (admin, client portal)
 5. Stores and views
 6. Router and supervisor tree

# Configuration

	PANEL_API_URL=https://panel.example.com/api
	TOKEN_STORE=badger
	TOKEN_STORE_PATH=/data/proxypanel/tokens
	PORTAL_ENABLED=true
	HTTP_PORT=8080

A config file (CONFIG_PATH or config.yaml) is watched; changes to the log
level apply without a restart.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
SHUTDOWN_TIMEOUT and the log tail closes its WebSocket.
*/
package main
