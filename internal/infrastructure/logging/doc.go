// Package logging provides structured logging using uber/zap.
//
// The orchard command logs in two places at once: plain messages on
// stderr for the user (debug lines only with --verbose), and a JSON debug
// log per command run under ~/.orchard/log, which API error messages
// point at.
//
// Example Usage:
//
//	logger, err := logging.New(logging.CLIConfig(verbose, logging.FileFor(dir, "apps", time.Now())))
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//	logger.Info("Created web")
//	logger.Debug("request", zap.String("curl", cmd))
package logging
