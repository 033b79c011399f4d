// Package migrations embeds the appointment-service schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
