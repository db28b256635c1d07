// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package panel

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrMissingAccountNumber is returned when an operation needs a user and
	// none was given.
	ErrMissingAccountNumber = errors.New("account number is required")

	// ErrInvalidNodeID is returned for a zero or negative node id.
	ErrInvalidNodeID = errors.New("node id must be positive")

	// ErrInvalidServiceID is returned for a zero or negative service id.
	ErrInvalidServiceID = errors.New("service id must be positive")
)

// ValidAccountNumber reports whether acct can address a user. The literal
// "undefined" shows up when a caller formats a missing value.
func ValidAccountNumber(acct string) bool {
	acct = strings.TrimSpace(acct)
	return acct != "" && acct != "undefined"
}

func userPath(acct string, suffix string) (string, error) {
	if !ValidAccountNumber(acct) {
		return "", ErrMissingAccountNumber
	}
	return "/user/" + url.PathEscape(strings.TrimSpace(acct)) + suffix, nil
}

func nodePath(id int, suffix string) (string, error) {
	if id <= 0 {
		return "", ErrInvalidNodeID
	}
	return "/node/" + strconv.Itoa(id) + suffix, nil
}

func servicePath(nodeID, serviceID int) (string, error) {
	base, err := nodePath(nodeID, "/service/")
	if err != nil {
		return "", err
	}
	if serviceID <= 0 {
		return "", ErrInvalidServiceID
	}
	return base + strconv.Itoa(serviceID), nil
}
