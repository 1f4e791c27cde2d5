// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package cli provides helpers for the fckv command line
// interface: error printing, styled output and client
// configuration from environment variables.
package cli

import (
	"fmt"
	"runtime"
	"strings"

	tui "github.com/charmbracelet/lipgloss"
)

// StartupInfo describes a started server.
type StartupInfo struct {
	Version string
	Addr    string
	Admin   string // Empty if admin access is disabled
	Store   string // Storage engine name
	Verify  string // Content verification mode
	Lease   string // Lock lease duration
	Tamper  bool
}

// PrintStartupMessage prints a startup message describing
// the server to stdout.
func PrintStartupMessage(info StartupInfo) {
	fmt.Println(startupMessage(info, IsTerminal()))
}

// banner is a list of sections. Each row is a label, a
// value and an optional note. An empty row separates
// sections.
type banner [][3]string

func startupMessage(info StartupInfo, color bool) string {
	admin, adminNote := info.Admin, ""
	if admin == "" {
		admin, adminNote = "_", "[ disabled ]"
	}
	b := banner{
		{"Copyright", "MinIO, Inc.", "https://min.io"},
		{"License", "GNU AGPLv3", "https://www.gnu.org/licenses/agpl-3.0.html"},
		{"Version", info.Version, runtime.GOOS + "/" + runtime.GOARCH},
		{},
		{"Endpoint", "https://" + info.Addr, ""},
		{"Admin", admin, adminNote},
		{"Store", info.Store, "verify: " + info.Verify},
		{"Lock Lease", info.Lease, ""},
	}
	if info.Tamper {
		b = append(b, [3]string{"Tamper", "enabled", "the server may be instructed to lie"})
	}
	b = append(b,
		[3]string{},
		[3]string{"CLI Access", "$ export " + EnvServer + "=" + info.Addr, ""},
		[3]string{" ", "$ fckv --help", ""},
	)
	return b.render(color)
}

func (b banner) render(color bool) string {
	var label, note, warn tui.Style
	if color {
		label = label.Foreground(tui.Color("#2e42d1")).Bold(true)
		note = note.Faint(true)
		warn = warn.Foreground(tui.Color("#ac0000")).Bold(true)
	}
	label = label.Width(12)

	lines := make([]string, 0, len(b))
	for _, row := range b {
		if row == [3]string{} {
			lines = append(lines, "")
			continue
		}
		line := label.Render(row[0])
		if row[2] == "" {
			lines = append(lines, line+row[1])
			continue
		}
		style := note
		if row[0] == "Tamper" {
			style = warn
		}
		lines = append(lines, line+fmt.Sprintf("%-22s", row[1])+style.Render(row[2]))
	}
	return strings.Join(lines, "\n")
}
