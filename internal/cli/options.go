// Package cli handles command-line interface concerns.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Command identifies which subcommand was invoked.
type Command string

const (
	CmdInsertAPK        Command = "insert-apk"
	CmdValidateRepo     Command = "validate-repo"
	CmdSetGroup         Command = "set-group"
	CmdRemoveGroup      Command = "remove-group"
	CmdDeleteGroup      Command = "delete-group"
	CmdEditReleaseNotes Command = "edit-release-notes"
	CmdResign           Command = "resign"
	CmdListPackages     Command = "list-packages"
	CmdListGroups       Command = "list-groups"
)

// Options holds the parsed flags and positional arguments for one
// subcommand invocation (spec §6.5).
type Options struct {
	Command Command

	RepoDir    string // positional: repository root, always first
	ConfigPath string // --config

	Key string // --key, PKCS8 private key path; required by every mutating command

	ReleaseNotes bool // insert-apk --release-notes: prompt for notes via $EDITOR

	Group  string // set-group -g
	Create bool   // set-group --create
	Add    bool   // set-group --add

	Version int64 // edit-release-notes -v
	Delete  bool  // edit-release-notes --delete

	Yes     bool
	Quiet   bool
	Verbose bool
	NoColor bool

	// Args holds whatever positional arguments remain after the
	// subcommand's own flags: APK paths for insert-apk, package names
	// for set-group/remove-group, a group name for delete-group, a
	// single package for edit-release-notes/resign.
	Args []string
}

var allCommands = []Command{
	CmdInsertAPK, CmdValidateRepo, CmdSetGroup, CmdRemoveGroup, CmdDeleteGroup,
	CmdEditReleaseNotes, CmdResign, CmdListPackages, CmdListGroups,
}

func isKnownCommand(c string) bool {
	for _, k := range allCommands {
		if string(k) == c {
			return true
		}
	}
	return false
}

// Usage prints the top-level command reference to stderr.
func Usage() {
	fmt.Fprintf(os.Stderr, `aaus <repo-dir> <command> [flags] [args...]

Commands:
  insert-apk [--key K] [--release-notes] <apk...>   Insert one or more APKs
  validate-repo                                      Recheck on-disk invariants
  set-group {--create|--add} -g G <pkg...>           Assign packages to a group
  remove-group <pkg...>                              Clear packages' group
  delete-group G                                     Delete a group entirely
  edit-release-notes [-v V] [--delete] <pkg>         Edit a release's notes
  resign <pkg>                                        Re-sign metadata for a package
  list-packages                                       List known packages
  list-groups                                         List known groups

Every mutating command requires --key <path-to-pkcs8-key>.
`)
}

// ParseArgs parses the top-level repo-dir and command, then delegates the
// remaining arguments to the command's own flag set. A -h/--help request
// prints Usage and returns flag.ErrHelp.
func ParseArgs(args []string) (*Options, error) {
	if len(args) < 2 {
		Usage()
		return nil, fmt.Errorf("expected <repo-dir> <command>")
	}
	opts := &Options{RepoDir: args[0]}
	cmdStr := args[1]
	if !isKnownCommand(cmdStr) {
		return nil, fmt.Errorf("unknown command %q", cmdStr)
	}
	opts.Command = Command(cmdStr)
	rest := args[2:]

	fs := flag.NewFlagSet(cmdStr, flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to config.yaml")
	fs.StringVar(&opts.Key, "key", "", "Path to PKCS8 signing private key")
	fs.BoolVar(&opts.Yes, "y", false, "Skip confirmations")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Minimal output")
	if opts.Command != CmdEditReleaseNotes {
		fs.BoolVar(&opts.Verbose, "v", false, "Verbose output (edit-release-notes uses -v for the version code)")
	}
	fs.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	switch opts.Command {
	case CmdInsertAPK:
		fs.BoolVar(&opts.ReleaseNotes, "release-notes", false, "Prompt for release notes via $EDITOR")
	case CmdSetGroup:
		fs.StringVar(&opts.Group, "g", "", "Group name")
		fs.BoolVar(&opts.Create, "create", false, "Create the group if it doesn't exist")
		fs.BoolVar(&opts.Add, "add", false, "Add to an existing group without requiring --create")
	case CmdEditReleaseNotes:
		fs.Int64Var(&opts.Version, "v", 0, "Version code to edit (defaults to latest)")
		fs.Int64Var(&opts.Version, "version", 0, "Version code to edit (defaults to latest)")
		fs.BoolVar(&opts.Delete, "delete", false, "Delete the release notes instead of editing them")
	}

	fs.Usage = func() { Usage() }
	if err := fs.Parse(rest); err != nil {
		return nil, err
	}
	opts.Args = fs.Args()

	if opts.Quiet {
		opts.Yes = true
	}
	return opts, nil
}

// RequiresKey reports whether this command mutates the repository and
// therefore requires --key (spec §6.5: "every mutating command takes
// --key").
func (o *Options) RequiresKey() bool {
	switch o.Command {
	case CmdInsertAPK, CmdSetGroup, CmdRemoveGroup, CmdDeleteGroup, CmdEditReleaseNotes, CmdResign:
		return true
	default:
		return false
	}
}

// IsInteractive returns true if the CLI should be interactive.
func (o *Options) IsInteractive() bool {
	return !o.Quiet && !o.Yes
}

// JoinArgs renders positional args for diagnostics.
func (o *Options) JoinArgs() string {
	return strings.Join(o.Args, " ")
}
