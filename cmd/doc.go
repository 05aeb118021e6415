// Package cmd implements the command-line interface of dBind. It provides a
// hierarchical command structure for running the server and for calling it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a dBind server with its shards and the HTTP transport
//   - bind: Client commands for the binding operations (new, verify, update, del, query) and a load generator (perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable DBIND_<FLAG> (dashes become
// underscores), through .env / .env.local files, or through a config file given with --config.
//
// See dbind -help for a list of all commands.
package cmd
