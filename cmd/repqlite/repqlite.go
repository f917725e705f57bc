package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/chinarulezzz/repqlite"
	"github.com/chinarulezzz/repqlite/database"
	"github.com/chinarulezzz/repqlite/diff"
	"github.com/chinarulezzz/repqlite/util"
	"github.com/chinarulezzz/repqlite/watch"
)

var version string

// Return parsed options and positional arguments: either a directory to
// watch, or a database pair to diff once.
func parseOptions(args []string) (*repqlite.Options, []string, bool, string) {
	var opts struct {
		Lib         []string `short:"L" long:"lib" description:"Load an extension library into each connection" value-name:"path"`
		PrimaryKey  bool     `long:"primarykey" description:"Identify rows by the declared PRIMARY KEY clause"`
		RBU         bool     `long:"rbu" description:"Emit diffs in RBU staging-table form"`
		Transaction bool     `long:"transaction" description:"Wrap each diff in BEGIN TRANSACTION/COMMIT"`
		Event       string   `long:"event" description:"Filesystem event to react to" choice:"close_write" choice:"modify" default:"close_write"`
		Debug       int      `long:"debug" description:"Diagnostic bitset: 1 dumps column resolution, 2 prints diff SQL without executing" value-name:"bits"`
		Verbose     bool     `short:"v" long:"verbose" description:"Enable progress output"`
		Config      string   `long:"config" description:"YAML file to specify: target_tables, skip_tables"`
		Output      string   `short:"o" long:"output" description:"Write a one-shot diff to this journal instead of stdout"`
		Log         string   `long:"log" description:"Mirror logs to this rotating file"`
		Help        bool     `long:"help" description:"Show this help"`
		Version     bool     `long:"version" description:"Show this version"`
	}

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...] directory | db1 db2"
	args, err := parser.ParseArgs(args)
	if err != nil {
		fatal(err.Error())
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	event, ok := watch.ParseEventKind(opts.Event)
	if !ok {
		fatal(fmt.Sprintf("unknown event mask %q", opts.Event))
	}

	fileConfig, err := database.ParseFileConfig(opts.Config)
	if err != nil {
		fatal(err.Error())
	}

	options := &repqlite.Options{
		Libs:         opts.Lib,
		SchemaPK:     opts.PrimaryKey,
		RBU:          opts.RBU,
		Transaction:  opts.Transaction,
		Event:        event,
		Debug:        diff.Debug(opts.Debug),
		Output:       opts.Output,
		TargetTables: fileConfig.TargetTables,
		SkipTables:   fileConfig.SkipTables,
	}
	return options, args, opts.Verbose, opts.Log
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "repqlite: %s\n", msg)
	fmt.Fprintln(os.Stderr, "Try 'repqlite --help' for more information.")
	os.Exit(1)
}

func main() {
	options, args, verbose, logFile := parseOptions(os.Args[1:])
	util.InitSlog(verbose, logFile)

	var err error
	switch len(args) {
	case 1:
		err = repqlite.Run(args[0], options)
	case 2:
		err = repqlite.RunOnce(args[0], args[1], options)
	default:
		fatal("expected a directory to watch, or two databases to diff")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "repqlite: %v\n", err)
		os.Exit(1)
	}
}
