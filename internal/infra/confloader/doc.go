// Package confloader loads licmesh configuration with koanf.
//
// Sources, lowest to highest priority:
//
//  1. Defaults already set on the target struct
//  2. A YAML file, required or optional
//  3. Environment variables with the LICMESH_ prefix
//
// Environment keys use a double underscore between sections so that single
// underscores inside key names survive: LICMESH_LEDGER__MAX_SUPPLY sets
// ledger.max_supply. Loader.Sources reports which of the two contributed.
//
// Watcher reports changes to the config file so that reloadable settings,
// such as the log level, can be applied without a restart.
package confloader
