// Package banyanlog instantiates the per-package named loggers used across
// the module, following car.go's `var logger = log.Logger("go-car")`
// convention from the teacher repo.
package banyanlog

import logging "github.com/ipfs/go-log/v2"

// New returns a named logger scoped under the module, e.g. New("car/v2").
func New(pkg string) *logging.ZapEventLogger {
	return logging.Logger("banyanfs/" + pkg)
}
