// Package flagx picks individual flags out of a command line that is owned
// by someone else (the CLI framework), so configuration loaders can read
// their own flags without tripping over unknown ones.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns only the allowed flags (and their values) from args.
//
// Both "-flag value" and "-flag=value" forms are recognised. A token that
// starts with "-" is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, keep := allowed[arg]; !keep {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// dashed expands a flag name into the single and double dash spellings.
func dashed(names []string) []string {
	out := make([]string, 0, len(names)*2)
	for _, n := range names {
		out = append(out, "-"+n, "--"+n)
	}
	return out
}

// StringFlag returns the value of the first of names found in args, or ""
// when none is present. Parse errors are ignored.
func StringFlag(args []string, names ...string) string {
	var value string

	fs := flag.NewFlagSet("flagx", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, n := range names {
		fs.StringVar(&value, n, "", "")
	}
	_ = fs.Parse(FilterArgs(args, dashed(names)))

	return value
}

// JSONConfigPath returns the config file path given via -c or -config.
func JSONConfigPath(args []string) string {
	return StringFlag(args, "c", "config")
}

// EnvFilePath returns the dotenv file path given via -env-file.
func EnvFilePath(args []string) string {
	return StringFlag(args, "env-file")
}
