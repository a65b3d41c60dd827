// Package config provides configuration parsing for the reactor runtime.
//
// The configuration is stored in reactor.json, reactor.yaml/reactor.yml or
// reactor.toml. The format is chosen by file extension. This package handles
// loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "scheduler": {
//	    "maxFlushIterations": 1000,
//	    "dispatchBuffer": 256
//	  },
//	  "dev": true,
//	  "log": {"level": "debug", "format": "json"},
//	  "metrics": {"enabled": true, "namespace": "reactor"},
//	  "tracing": {"enabled": false},
//	  "devtools": {"host": "localhost", "port": 7070}
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	logger := cfg.Logger(os.Stderr)
package config
