// -----------------------------------------------------------------------
// Command table - maps each job type to its CLI invocation
// -----------------------------------------------------------------------

package executor

import (
	"github.com/ternarybob/conductor/internal/models"
)

// CommandSpec describes how one job type is run through the docs CLI.
// BuildArgs is pure: the same options always produce the same argv.
type CommandSpec struct {
	Name      string
	BuildArgs func(options models.JobOptions) []string
}

// commandTable returns the closed job-type to command mapping. Flags are
// emitted in the order the builders declare them; an option that is absent,
// an empty string, or false contributes nothing to the argv, so {force:false}
// and {} build identical commands.
func commandTable() map[models.JobType]CommandSpec {
	return map[models.JobType]CommandSpec{
		models.JobTypeFetch: {
			Name: "fetch",
			BuildArgs: func(o models.JobOptions) []string {
				args := []string{"fetch"}
				args = appendStringFlag(args, "--slug", o, "slug")
				args = appendStringFlag(args, "--locale", o, "locale")
				args = appendBoolFlag(args, "--force", o, "force")
				return args
			},
		},
		models.JobTypeFetchAll: {
			Name: "fetch-all",
			BuildArgs: func(o models.JobOptions) []string {
				args := []string{"fetch", "--all"}
				args = appendStringFlag(args, "--locale", o, "locale")
				args = appendBoolFlag(args, "--force", o, "force")
				return args
			},
		},
		models.JobTypeTranslate: {
			Name: "translate",
			BuildArgs: func(o models.JobOptions) []string {
				args := []string{"translate"}
				args = appendStringFlag(args, "--slug", o, "slug")
				args = appendStringFlag(args, "--locale", o, "locale")
				args = appendBoolFlag(args, "--force", o, "force")
				args = appendBoolFlag(args, "--dry-run", o, "dryRun")
				return args
			},
		},
		models.JobTypeSyncReady:      syncSpec("sync-ready", "ready"),
		models.JobTypeSyncTranslated: syncSpec("sync-translated", "translated"),
		models.JobTypeSyncReviewed:   syncSpec("sync-reviewed", "reviewed"),
		models.JobTypeSyncPublished:  syncSpec("sync-published", "published"),
	}
}

// syncSpec builds the spec for one status-sync stage. The stage is baked in;
// options only toggle the dry-run flag.
func syncSpec(name, stage string) CommandSpec {
	return CommandSpec{
		Name: name,
		BuildArgs: func(o models.JobOptions) []string {
			args := []string{"sync", "--status", stage}
			args = appendBoolFlag(args, "--dry-run", o, "dryRun")
			return args
		},
	}
}

// appendStringFlag appends "flag value" when the option is a non-empty string
func appendStringFlag(args []string, flag string, options models.JobOptions, key string) []string {
	if v, ok := options[key].(string); ok && v != "" {
		args = append(args, flag, v)
	}
	return args
}

// appendBoolFlag appends a bare flag when the option is true
func appendBoolFlag(args []string, flag string, options models.JobOptions, key string) []string {
	if v, ok := options[key].(bool); ok && v {
		args = append(args, flag)
	}
	return args
}
