package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
)

// composeFileNames are the spellings docker compose itself accepts, in its
// lookup order.
var composeFileNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yml",
	"docker-compose.yaml",
}

// FindComposeFile locates the compose file inside an installed service
// directory.
func FindComposeFile(dir string) (string, error) {
	for _, name := range composeFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no compose file found in %s (looked for %s)",
		dir, strings.Join(composeFileNames, ", "))
}

// ValidateCompose parses the service's compose file with the service .env
// applied, so a broken clone or a bad model value fails before anything is
// started. Returns the parsed project.
func ValidateCompose(ctx context.Context, name, dir string) (*compose.Project, error) {
	path, err := FindComposeFile(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	env, err := ReadEnvFile(filepath.Join(dir, envFileName))
	if err != nil {
		return nil, err
	}

	configDetails := compose.ConfigDetails{
		WorkingDir: dir,
		ConfigFiles: []compose.ConfigFile{
			{Filename: path, Content: data},
		},
		Environment: compose.Mapping(env),
	}

	project, err := loader.LoadWithContext(ctx, configDetails, func(o *loader.Options) {
		o.SetProjectName(name, true)
		o.SkipValidation = false
	})
	if err != nil {
		return nil, fmt.Errorf("invalid compose file %s: %w", path, err)
	}
	if len(project.Services) == 0 {
		return nil, fmt.Errorf("compose file %s defines no services", path)
	}

	return project, nil
}
