package logconfig

import (
	myLogger "github.com/sirupsen/logrus"
)

// This output format is used in the test (has terminal).
func ConfigDebugLogger() {
	// configure log facility in this test
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// This output format is used in production.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}

// ConfigLoggerFromString configures the production format at the named
// level, e.g. "debug" or "warn".
func ConfigLoggerFromString(level string) error {
	lvl, err := myLogger.ParseLevel(level)
	if err != nil {
		return err
	}
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
	myLogger.SetReportCaller(lvl >= myLogger.DebugLevel)
	myLogger.SetLevel(lvl)
	return nil
}
