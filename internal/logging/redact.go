// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package logging

import (
	"net/url"
	"regexp"
)

// MaskSecret masks an API key or token for logging.
// Example: "sk-abcdef123456789" -> "sk-a...6789"
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// keyValuePassword matches password=... in key/value DSNs.
var keyValuePassword = regexp.MustCompile(`(?i)(password=)(\S+)`)

// mysqlPassword matches user:password@ in go-sql-driver DSNs.
var mysqlPassword = regexp.MustCompile(`^([^:@/]+):([^@]*)@`)

// RedactDSN removes the password from a database connection string.
// URL, key/value and MySQL DSN forms are understood; anything else is
// returned unchanged.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil && u.Scheme != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
			return u.String()
		}
		return dsn
	}
	if keyValuePassword.MatchString(dsn) {
		return keyValuePassword.ReplaceAllString(dsn, "${1}***")
	}
	return mysqlPassword.ReplaceAllString(dsn, "${1}:***@")
}
