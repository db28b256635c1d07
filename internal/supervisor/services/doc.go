// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package services adapts ProxyPanel components to suture.Service.

  - HTTPServerService runs an *http.Server and shuts it down gracefully when
    its context is cancelled.
  - CronService runs jobs on robfig/cron schedules, such as the periodic
    refresh of the dashboard statistics.

logtail.Tailer implements suture.Service itself and needs no wrapper.
*/
package services
