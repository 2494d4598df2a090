// Package config loads service configuration from YAML files, .env files,
// and environment variables using viper.
//
// Precedence, lowest to highest: config.yml, .env file, process environment.
//
//	var cfg app.Config
//	if err := config.Load("auth-service", &cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
