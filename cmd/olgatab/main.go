// Command olgatab runs flash grids offline and encodes their results as
// OLGA TAB files.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.WithError(err).Error("olgatab failed")
		os.Exit(1)
	}
}
