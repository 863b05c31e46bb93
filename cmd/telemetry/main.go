// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	rootCmd.AddCommand(runCmd, calibrateCmd, probeCmd, receiveCmd, consoleCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
