// Package config loads the realmctl configuration file.
//
// The file is YAML. ${VAR} references are expanded from the environment
// before decoding, and relative paths are resolved against the directory
// holding the file:
//
//	path: people.realm
//	schema: ./schema.cue
//	store: ${HOME}/.realmctl/store.db
//	log_level: debug
package config
