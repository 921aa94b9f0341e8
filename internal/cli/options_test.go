package cli

import "testing"

func TestParseArgsInsertAPK(t *testing.T) {
	opts, err := ParseArgs([]string{"/repo", "insert-apk", "--key", "k.pem", "--release-notes", "a.apk", "b.apk"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if opts.Command != CmdInsertAPK {
		t.Errorf("Command = %q", opts.Command)
	}
	if opts.Key != "k.pem" {
		t.Errorf("Key = %q", opts.Key)
	}
	if !opts.ReleaseNotes {
		t.Error("ReleaseNotes = false, want true")
	}
	if len(opts.Args) != 2 {
		t.Errorf("Args = %v, want 2 entries", opts.Args)
	}
	if !opts.RequiresKey() {
		t.Error("insert-apk should require --key")
	}
}

func TestParseArgsSetGroup(t *testing.T) {
	opts, err := ParseArgs([]string{"/repo", "set-group", "--create", "-g", "core", "--key", "k.pem", "com.example.a"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if opts.Group != "core" || !opts.Create {
		t.Errorf("Group=%q Create=%v", opts.Group, opts.Create)
	}
}

func TestParseArgsListPackagesDoesNotRequireKey(t *testing.T) {
	opts, err := ParseArgs([]string{"/repo", "list-packages"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if opts.RequiresKey() {
		t.Error("list-packages should not require --key")
	}
}

func TestParseArgsUnknownCommand(t *testing.T) {
	if _, err := ParseArgs([]string{"/repo", "frobnicate"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestParseArgsTooFewArgs(t *testing.T) {
	if _, err := ParseArgs([]string{"/repo"}); err == nil {
		t.Fatal("expected error when command is missing")
	}
}

func TestQuietImpliesYes(t *testing.T) {
	opts, err := ParseArgs([]string{"/repo", "list-groups", "--quiet"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Yes {
		t.Error("--quiet should imply Yes")
	}
}
