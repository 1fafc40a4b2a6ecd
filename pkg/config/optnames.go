package config

const (
	OptConnections  = "connections"
	OptConnTimeout  = "connect-timeout"
	OptForce        = "force"
	OptLoggingLevel = "log-level"
	OptPlain        = "plain"
	OptProbeGrace   = "probe-grace"
	OptProbeTimeout = "probe-timeout"
	OptRetries      = "retries"
	OptSkipProbe    = "no-probe"
	OptVerbose      = "verbose"
)
