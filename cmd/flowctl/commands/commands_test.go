package commands

import (
	"strings"
	"testing"
)

func TestUserCommandCoversRoleAssignment(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range userCommand().Commands {
		names[sub.Name] = true
	}

	for _, want := range []string{"list", "get", "create", "roles", "assign-role"} {
		if !names[want] {
			t.Errorf("user command is missing the %s subcommand", want)
		}
	}
}

func TestRunsHintNamesRealFlags(t *testing.T) {
	var flags map[string]bool
	for _, sub := range flowCommand().Commands {
		if sub.Name != "runs" {
			continue
		}
		flags = map[string]bool{}
		for _, flag := range sub.Flags {
			for _, name := range flag.Names() {
				flags[name] = true
			}
		}
	}
	if flags == nil {
		t.Fatal("flow command has no runs subcommand")
	}

	for _, token := range strings.Fields(runsMoreHint) {
		token = strings.Trim(token, ".,")
		if !strings.HasPrefix(token, "--") {
			continue
		}
		if name := strings.TrimPrefix(token, "--"); !flags[name] {
			t.Errorf("hint mentions --%s, which is not a flag of flow runs", name)
		}
	}
}
