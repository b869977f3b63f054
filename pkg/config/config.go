// Package config loads daemon and client configuration from an ini file,
// using gopkg.in/ini.v1 — the teacher's own dependency, used there for
// EDS/object-dictionary parsing and repurposed here for the ambient
// configuration concern ini.v1 is conventionally used for across the
// ecosystem.
package config

import (
	"time"

	"gopkg.in/ini.v1"
)

// Daemon holds server-side configuration.
type Daemon struct {
	ListenAddr  string
	Transport   string
	Codec       string
	FIFODepth   int
	KeepAlive   time.Duration
	PollTimeout time.Duration
}

// Client holds client-side configuration.
type Client struct {
	Transport          string
	Codec              string
	NewServiceTimeout  time.Duration
	ServiceReqTimeout  time.Duration
	SendRequestTimeout time.Duration
}

// LoadDaemon reads daemon settings from the [daemon] section of path.
func LoadDaemon(path string) (*Daemon, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	sec := f.Section("daemon")
	d := &Daemon{
		ListenAddr:  sec.Key("listen_addr").MustString(":7890"),
		Transport:   sec.Key("transport").MustString("tcp"),
		Codec:       sec.Key("codec").MustString("lz4"),
		FIFODepth:   sec.Key("fifo_depth").MustInt(64),
		KeepAlive:   time.Duration(sec.Key("keepalive_ms").MustInt(1000)) * time.Millisecond,
		PollTimeout: time.Duration(sec.Key("poll_timeout_ms").MustInt(1000)) * time.Millisecond,
	}
	return d, nil
}

// LoadClient reads client settings from the [client] section of path.
func LoadClient(path string) (*Client, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	sec := f.Section("client")
	c := &Client{
		Transport:          sec.Key("transport").MustString("tcp"),
		Codec:              sec.Key("codec").MustString("lz4"),
		NewServiceTimeout:  time.Duration(sec.Key("new_service_timeout_ms").MustInt(30000)) * time.Millisecond,
		ServiceReqTimeout:  time.Duration(sec.Key("service_request_timeout_ms").MustInt(10000)) * time.Millisecond,
		SendRequestTimeout: time.Duration(sec.Key("send_request_timeout_ms").MustInt(5400000)) * time.Millisecond,
	}
	return c, nil
}
