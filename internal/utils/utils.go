package utils

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// AskForConfirmationDefaultYes prompts on stdout and reads one line from
// stdin. An empty answer counts as yes.
func AskForConfirmationDefaultYes(s string) bool {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("%s [Y/n]: ", s)

	response, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal(err)
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "", "y", "yes":
		return true
	default:
		return false
	}
}

// DumpOption writes opt as YAML to outputPath, creating the parent
// directory with owner-only permissions. An existing file is only replaced
// when overwrite is set or the user confirms.
func DumpOption(opt interface{}, outputPath string, overwrite bool) error {
	buffer, err := yaml.Marshal(opt)
	if err != nil {
		return err
	}

	parentPath := path.Dir(outputPath)
	if err := os.MkdirAll(parentPath, 0700); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", parentPath, err)
	}
	if info, err := os.Stat(parentPath); err == nil && info.Mode().Perm() != 0700 {
		if err := os.Chmod(parentPath, 0700); err != nil {
			return fmt.Errorf("cannot restrict directory %s: %w", parentPath, err)
		}
	}

	if !overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			if !AskForConfirmationDefaultYes("configuration " + outputPath + " already exists, overwrite?") {
				log.Infoln("abort")
				return nil
			}
		}
	}

	log.Infoln("writing default configuration to", outputPath)
	if err := os.WriteFile(outputPath, buffer, 0600); err != nil {
		return fmt.Errorf("cannot write %s: %w", outputPath, err)
	}
	return nil
}
