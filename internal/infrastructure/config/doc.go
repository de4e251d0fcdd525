// Package config handles loading and validating busmapd configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with BUSMAP_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Secrets (MQTT password, InfluxDB token, JWT secret) should be supplied
// through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/busmap.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range cfg.Bus.Windows {
//	    fmt.Println(w.Name, w.Backend, w.Size)
//	}
package config
