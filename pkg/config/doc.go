/*
Package config loads and validates the settings of a decode run.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   JSON   | |   HCL    |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- One explicit Config value handed to the orchestrator at construction
- Format-agnostic loading, chosen by file extension
- Defaults for every pacing and retry knob

🔄 Flow:
1. Default() or Load(path) produces a Config
2. The CLI overlays environment variables and explicit flags
3. Validate() normalizes paths and derives the destination
4. RequireCredentials() guards commands that talk to the remote service

Example YAML:

	source: ./encoded
	destination: ./encoded_decoded
	batch_size: 20
	batch_delay: 2s
	remote:
	  decoder: ic11php72
	classify:
	  exclude:
	    - "vendor/**"

Example HCL:

	source   = "./encoded"
	username = env.EASY4US_USERNAME

	remote {
	  decoder    = "ic11php72"
	  poll_delay = "500ms"
	}
*/
package config
