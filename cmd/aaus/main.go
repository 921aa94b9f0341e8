// Command aaus is the repository engine's command-line entry point: it
// parses a subcommand (spec §6.5), wires together the store, layout,
// signer, delta engine, and orchestrator, and dispatches.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sahilm/fuzzy"

	"github.com/andrel/aaus/internal/aauserr"
	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/cli"
	"github.com/andrel/aaus/internal/config"
	"github.com/andrel/aaus/internal/editor"
	"github.com/andrel/aaus/internal/insert"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/publish"
	"github.com/andrel/aaus/internal/signer"
	"github.com/andrel/aaus/internal/store"
	"github.com/andrel/aaus/internal/ui"
	"github.com/andrel/aaus/internal/validate"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	ui.SetNoColor(opts.NoColor)
	if opts.Quiet {
		ui.QuietMode = true
	}

	sig := cli.NewSignalHandler()
	defer sig.Stop()
	ctx := sig.Context()

	var cfg *config.Config
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}

	lay := layout.New(opts.RepoDir)
	lock := lay.NewRepoLock()
	if err := lock.TryLock(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer lock.Unlock()

	db, err := store.Open(filepath.Join(opts.RepoDir, ".aaus.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer db.Close()

	var key *signer.PrivateKey
	if opts.RequiresKey() {
		keyPath := opts.Key
		if keyPath == "" && cfg != nil {
			keyPath = cfg.ResolvePath(cfg.SigningKeyFile)
		}
		if keyPath == "" {
			fmt.Fprintln(os.Stderr, "error: --key is required for", opts.Command)
			return 1
		}
		key, err = signer.LoadPrivateKey(keyPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}

	tmpDir := os.TempDir()
	if cfg != nil && cfg.TempDir != "" {
		tmpDir = cfg.ResolvePath(cfg.TempDir)
	}

	if err := dispatch(ctx, opts, lay, db, key, tmpDir); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, opts *cli.Options, lay *layout.Layout, db *store.DB, key *signer.PrivateKey, tmpDir string) error {
	switch opts.Command {
	case cli.CmdInsertAPK:
		return runInsertAPK(ctx, opts, lay, db, key, tmpDir)
	case cli.CmdValidateRepo:
		return runValidateRepo(ctx, lay, db)
	case cli.CmdSetGroup:
		return runSetGroup(ctx, opts, db)
	case cli.CmdRemoveGroup:
		return runRemoveGroup(ctx, opts, db)
	case cli.CmdDeleteGroup:
		return runDeleteGroup(ctx, opts, db)
	case cli.CmdEditReleaseNotes:
		return runEditReleaseNotes(ctx, opts, db)
	case cli.CmdResign:
		return runResign(ctx, opts, lay, db, key)
	case cli.CmdListPackages:
		return runListPackages(ctx, db)
	case cli.CmdListGroups:
		return runListGroups(ctx, db)
	default:
		return fmt.Errorf("unhandled command %q", opts.Command)
	}
}

func runInsertAPK(ctx context.Context, opts *cli.Options, lay *layout.Layout, db *store.DB, key *signer.PrivateKey, tmpDir string) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("insert-apk requires at least one APK path")
	}
	orch := insert.New(db, lay, tmpDir)
	err := orch.InsertApks(ctx, insert.Options{Paths: opts.Args, Key: key, PromptNotes: opts.ReleaseNotes})
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("inserted %d APK(s)", len(opts.Args)))
	return nil
}

func runValidateRepo(ctx context.Context, lay *layout.Layout, db *store.DB) error {
	checker := &validate.RepoChecker{DB: db, Lay: lay}
	errs := checker.Check(ctx)
	if len(errs) == 0 {
		ui.PrintSuccess("repository is consistent")
		return nil
	}
	for _, e := range errs {
		ui.PrintError(e.Error())
	}
	return fmt.Errorf("%d consistency violation(s) found", len(errs))
}

func runSetGroup(ctx context.Context, opts *cli.Options, db *store.DB) error {
	if opts.Group == "" {
		return fmt.Errorf("set-group requires -g <name>")
	}
	if !opts.Create && !opts.Add {
		return fmt.Errorf("set-group requires --create or --add")
	}
	g, err := apkid.NewGroupName(opts.Group)
	if err != nil {
		return err
	}
	pkgs, err := resolvePackageNames(ctx, db, opts.Args)
	if err != nil {
		return err
	}

	exists, err := groupExists(ctx, db, g)
	if err != nil {
		return err
	}
	if !exists && opts.Add {
		return aauserrGroupDoesntExist(g)
	}

	return db.Transaction(ctx, func(tx *store.Tx) error {
		return store.CreateGroup(tx, g, pkgs, apkid.Now())
	})
}

func runRemoveGroup(ctx context.Context, opts *cli.Options, db *store.DB) error {
	pkgs, err := resolvePackageNames(ctx, db, opts.Args)
	if err != nil {
		return err
	}
	return db.Transaction(ctx, func(tx *store.Tx) error {
		return store.SetGroupForPackages(tx, nil, pkgs, apkid.Now())
	})
}

func runDeleteGroup(ctx context.Context, opts *cli.Options, db *store.DB) error {
	if len(opts.Args) != 1 {
		return fmt.Errorf("delete-group requires exactly one group name")
	}
	g, err := apkid.NewGroupName(opts.Args[0])
	if err != nil {
		return err
	}
	return db.Transaction(ctx, func(tx *store.Tx) error {
		return store.DeleteGroup(tx, g, apkid.Now())
	})
}

func runEditReleaseNotes(ctx context.Context, opts *cli.Options, db *store.DB) error {
	if len(opts.Args) != 1 {
		return fmt.Errorf("edit-release-notes requires exactly one package")
	}
	pkg, err := apkid.NewPackageName(opts.Args[0])
	if err != nil {
		return err
	}

	var version apkid.VersionCode
	if opts.Version != 0 {
		version, err = apkid.NewVersionCode(opts.Version)
		if err != nil {
			return err
		}
	} else {
		latest, err := db.GetLatestRelease(ctx, pkg)
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("%s has no releases", pkg)
		}
		version = latest.VersionCode
	}

	release, err := db.GetRelease(ctx, pkg, version)
	if err != nil {
		return err
	}
	if release == nil {
		return fmt.Errorf("%s@%s not found", pkg, version)
	}

	if opts.Delete {
		return db.Transaction(ctx, func(tx *store.Tx) error {
			return store.UpdateReleaseNotes(tx, pkg, version, nil, apkid.Now())
		})
	}

	notes, err := editor.EditReleaseNotes(pkg, version, release.ReleaseNotes, apkid.Now())
	if err != nil {
		return err
	}
	return db.Transaction(ctx, func(tx *store.Tx) error {
		return store.UpdateReleaseNotes(tx, pkg, version, notes, apkid.Now())
	})
}

func runResign(ctx context.Context, opts *cli.Options, lay *layout.Layout, db *store.DB, key *signer.PrivateKey) error {
	if len(opts.Args) != 1 {
		return fmt.Errorf("resign requires exactly one package")
	}
	pkg, err := apkid.NewPackageName(opts.Args[0])
	if err != nil {
		return err
	}
	pub := publish.New(db, lay, key)
	if err := pub.Resign(ctx, pkg); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("resigned metadata for %s", pkg))
	return nil
}

func runListPackages(ctx context.Context, db *store.DB) error {
	apps, err := db.AllApps(ctx)
	if err != nil {
		return err
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	for _, a := range apps {
		group := ""
		if a.Group != nil {
			group = " [" + a.Group.String() + "]"
		}
		fmt.Printf("%s  %s%s\n", a.Name, a.Label, group)
	}
	return nil
}

func runListGroups(ctx context.Context, db *store.DB) error {
	m, err := db.GetGroupToAppMap(ctx)
	if err != nil {
		return err
	}
	groups := make([]apkid.GroupName, 0, len(m))
	for g := range m {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	for _, g := range groups {
		fmt.Printf("%s:\n", g)
		for _, pkg := range m[g] {
			fmt.Printf("  %s\n", pkg)
		}
	}
	return nil
}

// resolvePackageNames validates each requested package name and, for any
// that aren't yet known to the repository, surfaces the closest existing
// names as a suggestion before failing, instead of a bare "not found".
func resolvePackageNames(ctx context.Context, db *store.DB, args []string) ([]apkid.PackageName, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one package name is required")
	}
	apps, err := db.AllApps(ctx)
	if err != nil {
		return nil, err
	}
	known := make([]string, len(apps))
	for i, a := range apps {
		known[i] = a.Name.String()
	}

	out := make([]apkid.PackageName, 0, len(args))
	for _, a := range args {
		pkg, err := apkid.NewPackageName(a)
		if err != nil {
			return nil, err
		}
		exists, err := db.DoesAppExist(ctx, pkg)
		if err != nil {
			return nil, err
		}
		if !exists {
			matches := fuzzy.Find(a, known)
			if len(matches) > 0 {
				return nil, fmt.Errorf("package %s not found in repository; did you mean %s?", a, matches[0].Str)
			}
			return nil, fmt.Errorf("package %s not found in repository", a)
		}
		out = append(out, pkg)
	}
	return out, nil
}

func groupExists(ctx context.Context, db *store.DB, g apkid.GroupName) (bool, error) {
	m, err := db.GetGroupToAppMap(ctx)
	if err != nil {
		return false, err
	}
	_, ok := m[g]
	return ok, nil
}

func aauserrGroupDoesntExist(g apkid.GroupName) error {
	return aauserr.New(aauserr.GroupDoesntExist, "set-group",
		fmt.Errorf("group %s does not exist; use --create to create it", g))
}
