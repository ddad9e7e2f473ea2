// Package logging provides file-based JSON logging with rotation for Knowpack.
// The build, query, watch and serve subcommands always write info-level logs
// to ~/.packctl/logs/packctl.log, without echoing them to stderr.
//
// The --debug flag additionally installs a debug-level logger that writes to
// the same file and to stderr before the subcommand runs.
package logging
