package config

import "fmt"

func possibleConfigPaths(homeDir, flagPath string) []string {
	return []string{
		flagPath,
		fmt.Sprintf("%s/%s", homeDir, ".shepherd.hcl"),
		fmt.Sprintf("%s/%s/%s", homeDir, ".config", "shepherd.hcl"),
	}
}
