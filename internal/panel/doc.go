// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package panel provides one typed function per panel API endpoint.

Two facades exist, one per actor kind:

  - Admin: the administrative dashboard (users, nodes, services, core,
    certificates, system statistics)
  - Portal: the end-user client portal (account, plans, servers, checkout)

Both sit on top of an httpclient.Client bound to the matching token storage,
so callers never handle bearer tokens directly.

Preconditions are checked before any request is sent: an empty or
"undefined" account number fails with ErrMissingAccountNumber and a
non-positive node id fails with ErrInvalidNodeID.

Errors from the transport are returned wrapped with the operation name and
can be inspected with httpclient.DetailOf, httpclient.FieldErrorsOf and
errors.Is/errors.As.
*/
package panel
