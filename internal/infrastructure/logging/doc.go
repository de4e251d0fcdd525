// Package logging provides structured logging for busmapd.
//
// It wraps log/slog with JSON output for production, text output for
// development, and service/version fields on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("window mapped", "device", "adc", "size", 4096)
//	reg.SetLogger(logger.Component("devbus"))
//
// Never log secrets or tokens.
package logging
