// Command gsync inspects and synchronizes locally stored encrypted groups.
//
// Usage:
//
//	gsync derive <master-key-hex>   Show the group id for a master key
//	gsync sync <master-key-hex>     Fetch and apply new group revisions
//	gsync listen                    Apply server-pushed changes as they arrive
//	gsync show <group-id>           Dump the stored group state
//	gsync recipients                List harvested profile keys
//	gsync advance <group-id> <file> Replay a serialized change log offline
package main

import (
	"os"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type globalOpts struct {
	DB      string `long:"db" description:"Path to database file"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable verbose logging"`

	Derive     deriveCommand     `command:"derive" description:"Derive the group id from a master key"`
	Sync       syncCommand       `command:"sync" description:"Synchronize a group with the server"`
	Listen     listenCommand     `command:"listen" description:"Apply server-pushed group changes as they arrive"`
	Show       showCommand       `command:"show" description:"Show the stored state of a group"`
	Recipients recipientsCommand `command:"recipients" description:"List recipients and their profile keys"`
	Advance    advanceCommand    `command:"advance" description:"Replay a serialized change log against a stored group"`
}

var opts globalOpts

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// logger builds the CLI logger: human-readable output when verbose,
// silent otherwise.
func logger() *zap.Logger {
	if !opts.Verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
