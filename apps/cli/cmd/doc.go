// Package cmd implements the pagespec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute browser scenarios, or the built-in history suite
//   - validate: Check scenario files without starting a browser
//   - list: Display all scenarios defined in files
//   - init: Create a config file and an example scenario file
//   - fixture check: Verify the authenticated session fixture
//   - mock: Serve an imitation of the conversation history screen
//   - version: Show pagespec version information
//
// Exit codes separate scenario failures from parse, config and browser
// errors so CI can tell them apart.
package cmd
