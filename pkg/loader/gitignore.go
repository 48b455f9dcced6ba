// This file handles automatic .gitignore management for the .timelines
// directory (settings, navigation history).
package loader

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDotdirInGitignore ensures that .timelines/ is listed in the
// project's .gitignore so local settings and the history database stay out
// of version control. Idempotent; creates .gitignore when missing.
func EnsureDotdirInGitignore(projectDir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")

	present, err := isDotdirInGitignore(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if present {
		return nil
	}

	return appendToGitignore(gitignorePath, ".timelines/")
}

func isDotdirInGitignore(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if matchesDotdirPattern(line) {
			return true, nil
		}
	}

	return false, scanner.Err()
}

// matchesDotdirPattern checks if a gitignore line covers the .timelines
// directory: the bare name or anything under it, with or without a leading
// slash.
func matchesDotdirPattern(line string) bool {
	line = strings.TrimPrefix(line, "/")
	return line == ".timelines" || strings.HasPrefix(line, ".timelines/")
}

// appendToGitignore appends a pattern to the .gitignore file, creating it
// when missing and preserving the existing content's trailing-newline state.
func appendToGitignore(path string, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var toWrite string
	if len(content) == 0 {
		toWrite = "# timelines local settings and history\n" + pattern + "\n"
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n# timelines local settings and history\n" + pattern + "\n"
	}

	if _, err := file.WriteString(toWrite); err != nil {
		return err
	}

	return nil
}
