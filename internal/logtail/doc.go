// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package logtail follows the proxy core's live log over a WebSocket.

The stream path is announced by the core info endpoint. The tailer resolves it,
dials the panel with the admin token and feeds every received line into a Sink
(the core store). A dropped or refused connection is retried a fixed number of
times with a fixed pause; after that Serve returns ErrGaveUp and the supervisor
decides when to start over.

Tailer implements suture.Service.
*/
package logtail
