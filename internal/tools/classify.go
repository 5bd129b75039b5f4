package tools

import (
	"encoding/json"
	"strings"
)

// dangerousPatterns are substrings that mark a shell command as likely
// destructive. The match is informational: it decorates the confirmation
// prompt but never changes the Safe/Protected classification, which is
// static per tool name.
var dangerousPatterns = []string{
	"rm -rf", "rm -r", "rmdir",
	"drop ", "delete from", "truncate ",
	"sudo ", "chmod ", "chown ",
	"| sh", "| bash", "|sh", "|bash",
	"curl ", "wget ",
	"mkfs", "fdisk", "dd ",
	"> /dev/", ">> /dev/",
	"shutdown", "reboot",
	"git push --force", "git reset --hard",
}

// DangerHint returns a warning string when a run_shell_command invocation
// matches a known-destructive pattern, or "" when it looks ordinary.
func DangerHint(call string, arguments string) string {
	if call != "run_shell_command" {
		return ""
	}
	var args shellArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}
	lower := strings.ToLower(args.Command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return "command matches destructive pattern " + strings.TrimSpace(pattern)
		}
	}
	return ""
}
