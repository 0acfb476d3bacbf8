package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// RemoteFlags select the HTTP API instead of acting locally.
type RemoteFlags struct {
	APIUrl     string
	APITimeout time.Duration
	CACert     string
	Insecure   bool
}

func (f RemoteFlags) remote() bool { return f.APIUrl != "" }

type StatusFlags struct {
	RemoteFlags
	JSON    bool
	Process bool
}

type WatchFlags struct {
	NoStart     bool
	KeepRunning bool
}

type ServeFlags struct {
	Listen    string
	Watch     bool
	Daemonize bool
	PIDFile   string
	LogFile   string
}
