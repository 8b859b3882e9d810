package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/andaru/nntp/session"
	"github.com/andaru/nntp/transport"
)

// config is the resolved nntpcat configuration: defaults, overlaid by
// the configuration file, overlaid by flags and environment.
type config struct {
	Host      string
	Port      string
	SSL       bool
	Insecure  bool
	User      string
	Pass      string
	Compress  bool
	Echo      bool
	Verbose   bool
	Timeout   time.Duration
	ChunkSize int
}

func defaultConfig() config {
	return config{Timeout: 30 * time.Second}
}

// fileConfig is the TOML configuration file layout.
type fileConfig struct {
	Host      string `toml:"host"`
	Port      string `toml:"port"`
	SSL       bool   `toml:"ssl"`
	Insecure  bool   `toml:"insecure"`
	User      string `toml:"user"`
	Pass      string `toml:"pass"`
	Compress  bool   `toml:"compress"`
	Echo      bool   `toml:"echo"`
	Verbose   bool   `toml:"verbose"`
	Timeout   string `toml:"timeout"`
	ChunkSize int    `toml:"chunk_size"`
}

// loadConfigFile overlays the settings defined in the file at path onto
// cfg.
func loadConfigFile(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("ssl") {
		cfg.SSL = raw.SSL
	}
	if meta.IsDefined("insecure") {
		cfg.Insecure = raw.Insecure
	}
	if meta.IsDefined("user") {
		cfg.User = raw.User
	}
	if meta.IsDefined("pass") {
		cfg.Pass = raw.Pass
	}
	if meta.IsDefined("compress") {
		cfg.Compress = raw.Compress
	}
	if meta.IsDefined("echo") {
		cfg.Echo = raw.Echo
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	return nil
}

// configFromCommand builds the configuration for cmd.
func configFromCommand(cmd *cli.Command) (config, error) {
	cfg := defaultConfig()
	if path := cmd.String(configFlag); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	for name, set := range map[string]func(){
		hostFlag:      func() { cfg.Host = cmd.String(hostFlag) },
		portFlag:      func() { cfg.Port = cmd.String(portFlag) },
		sslFlag:       func() { cfg.SSL = cmd.Bool(sslFlag) },
		insecureFlag:  func() { cfg.Insecure = cmd.Bool(insecureFlag) },
		userFlag:      func() { cfg.User = cmd.String(userFlag) },
		passFlag:      func() { cfg.Pass = cmd.String(passFlag) },
		compressFlag:  func() { cfg.Compress = cmd.Bool(compressFlag) },
		echoFlag:      func() { cfg.Echo = cmd.Bool(echoFlag) },
		verboseFlag:   func() { cfg.Verbose = cmd.Bool(verboseFlag) },
		timeoutFlag:   func() { cfg.Timeout = cmd.Duration(timeoutFlag) },
		chunkSizeFlag: func() { cfg.ChunkSize = int(cmd.Int(chunkSizeFlag)) },
	} {
		if cmd.IsSet(name) {
			set()
		}
	}
	return cfg, nil
}

// Validate returns every problem with the configuration.
func (c config) Validate() []error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, fmt.Errorf("missing host"))
	}
	if c.SSL && c.Port == transport.PortPlain {
		errs = append(errs, fmt.Errorf("port %s is the plain NNTP port, drop --%s or choose another port", c.Port, sslFlag))
	}
	if !c.SSL && (c.Port == transport.PortSecure || c.Port == transport.PortSecureAlt) {
		errs = append(errs, fmt.Errorf("port %s is a TLS port, add --%s", c.Port, sslFlag))
	}
	if c.Insecure && !c.SSL {
		errs = append(errs, fmt.Errorf("--%s requires --%s", insecureFlag, sslFlag))
	}
	if c.Pass != "" && c.User == "" {
		errs = append(errs, fmt.Errorf("password given without a user"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("negative timeout %v", c.Timeout))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("negative chunk size %d", c.ChunkSize))
	}
	return errs
}

// port returns the configured port, or the well-known port for the
// transport in use.
func (c config) port() string {
	switch {
	case c.Port != "":
		return c.Port
	case c.SSL:
		return transport.PortSecure
	}
	return transport.PortPlain
}

func (c config) sessionConfig() session.Config {
	sc := session.Config{ChunkSize: c.ChunkSize, Echo: os.Stderr}
	if c.SSL {
		sc.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.Insecure,
		}
	}
	return sc
}
