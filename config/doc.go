// Package config loads service configuration from a YAML file, a .env file
// and the process environment.
//
// Files are searched in the conventional locations for the service
// (./cmd/<service>/config.yml, ./config/config.yml, ./config.yml and the
// matching .env files). Environment variables override file values; with
// WithEnvPrefix("CAPDIR") the variable CAPDIR_DIRECTORY_ADD_REMOVE_TTL maps
// to the key directory.add_remove_ttl.
//
//	var cfg AppConfig
//	if err := config.Load("capdir", &cfg, config.WithEnvPrefix("CAPDIR")); err != nil {
//	    ...
//	}
package config
