package main

import (
	"os"
	"strings"
)

// hasFlag checks if a flag exists in os.Args.
func hasFlag(flag string) bool {
	return hasFlagIn(cmdArgs(), flag)
}

// getFlagValue returns the value after a flag (--flag value or --flag=value).
func getFlagValue(flag string) string {
	return flagValueIn(cmdArgs(), flag)
}

func cmdArgs() []string {
	if len(os.Args) < 3 {
		return nil
	}
	return os.Args[2:]
}

func hasFlagIn(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func flagValueIn(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, flag+"="); ok {
			return v
		}
	}
	return ""
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
