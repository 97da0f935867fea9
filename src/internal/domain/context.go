package domain

import (
	"net"
	"time"
)

type Config struct {
	Version         string
	Host            string
	Port            string
	MetricsAddr     string // empty disables the metrics listener
	StreamAddr      string // empty disables the greeting stream listener
	HostnameFile    string
	ShutdownTimeout time.Duration
}

// Addr is the public listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type Context struct {
	Config Config
}
