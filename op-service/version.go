package op_service

import "strings"

// FormatVersion appends the short commit, the commit date and build meta to version,
// skipping the parts that are empty.
func FormatVersion(version string, gitCommit string, gitDate string, meta string) string {
	if len(gitCommit) > 8 {
		gitCommit = gitCommit[:8]
	}
	parts := []string{version}
	for _, p := range []string{gitCommit, gitDate, meta} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// PrefixEnvVar joins the service prefix and the flag suffix into the env var name(s) a flag reads.
func PrefixEnvVar(prefix, suffix string) []string {
	return []string{strings.ToUpper(prefix + "_" + suffix)}
}
