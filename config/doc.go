// Package config binds stage types to upgraders and brings persisted stage
// configuration records forward when they are loaded.
//
// Register an upgrader per stage type with its current version, then upgrade
// records as they are read:
//
//	reg := config.NewRegistry()
//	reg.MustRegister("lib", "jdbc-source", 3, jdbcChain)
//	reg.MustRegister("lib", "unversioned-sink", 2, nil) // upgrader.Default
//
//	rec, err := config.ParsePipelineRecord(data)
//	upgraded, err := config.UpgradePipeline(ctx, reg, rec, &config.UpgradeOptions{Observer: obs})
//
// A stage record is only handed to its upgrader when its recorded version is
// older than the registered one. Records that are current pass through
// untouched; records newer than the stage fail with a NotSupported error.
//
// Upgraders can also be declared in YAML (see DefinitionFile) and bound with
// ParseDefinitions and RegisterDefinitions:
//
//	upgraders:
//	  - library: lib
//	    stage: jdbc-source
//	    version: 3
//	    steps:
//	      - from: 1
//	        ops:
//	          - rename: {from: user, to: username}
//	      - from: 2
//	        ops:
//	          - add: {name: connectionTimeoutMs, value: 30000}
//	          - convert: {name: port, type: number}
package config
