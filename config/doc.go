// Package config loads the receiver's YAML configuration.
//
// Load starts from Default, overlays the file and runs Validate, which
// checks each section and prefixes failures with the section name:
//
//	server:
//	  listen_address: ":7000"
//	  raw_sockets: true
//	framing:
//	  max_block_size: 1024
//	logging:
//	  level: debug
//	  format: json
package config
