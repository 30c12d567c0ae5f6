// Package cli implements the pgai command-line interface.
//
// Each command is built by a constructor that closes over a shared app
// value. The root command's PersistentPreRunE fills that value once flags
// are parsed: the effective config, a logger and a gateway client. Command
// bodies then delegate to the registry, report and onboard packages.
//
// # Command Structure
//
//	pgai servers list               - Registered servers with status
//	pgai servers add                - Register a server, optionally install its agent
//	pgai servers databases <id>     - Databases the agent reports
//	pgai agent install <id>         - Install or retry the agent on a server
//	pgai collect <id>               - Collect a report and print its actions
//	pgai report actions <report-id> - Actions for a stored report
//	pgai report latest <id>         - A server's most recent report
//	pgai report download <report-id>
//	pgai console                    - Interactive console
//	pgai config [init|show|set|secret]
//
// # Output
//
// Every command honours --json. Success writes {"success": true, "data": ...};
// failures write {"success": false, "error": {...}} with a stable code from
// ErrorToJSON. Human output goes through the ui package and spinners are
// suppressed in JSON or quiet mode.
//
// # Flag Handling
//
// Global flags (--config, --api-url, --json, --verbose, --no-color) live on
// the root command. InstallFlags is shared by "servers add" and
// "agent install"; empty values fall back to the config file, the OS keyring
// and ~/.ssh/config, in that order.
package cli
