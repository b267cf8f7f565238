// Package config layers defaults, an optional YAML file, CONNECTOME_*
// environment variables and command-line flags into the settings of every
// pipeline stage.
package config
