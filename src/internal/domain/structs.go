package domain

import "time"

// Defaults
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = "5000"
	DefaultHostnameFile    = "/etc/hostname" // change trigger only, see hostname.Watcher
	DefaultShutdownTimeout = 5 * time.Second
)

const GreetingPrefix = "Hello from Kubernetes! Pod: "

// Body written when the host name cannot be resolved.
const HostnameErrorBody = "hostname lookup failed"

// Metric label values for greeting results
const (
	ResultOk    = "ok"
	ResultError = "error"
)
