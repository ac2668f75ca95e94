package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// OverrideEnvVar names a variable that, when set, points at the .env file to
// load ahead of the --env flag.
const OverrideEnvVar = "LEADSCOUT_ENV_FILE"

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
	logger      zerolog.Logger
}

type envCandidate struct {
	path   string
	source string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
		// Config, and with it the real logger, is only known after loading.
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			With().Timestamp().Str("component", "env").Logger(),
	}
}

// SetLogger replaces the stderr logger used to report which file was loaded.
func (l *EnvLoader) SetLogger(logger zerolog.Logger) {
	if l != nil {
		l.logger = logger
	}
}

// Load tries, in order, the override variable, the --env value, its basename
// and the default path. It returns the first file that loaded.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	candidates := l.candidates()
	for _, candidate := range candidates {
		if err := godotenv.Overload(candidate.path); err != nil {
			if candidate.source == "override" {
				l.logger.Warn().Err(err).Str("path", candidate.path).Msgf("failed to load %s", OverrideEnvVar)
			}
			continue
		}
		l.logger.Debug().Str("path", candidate.path).Str("source", candidate.source).Msg("loaded environment file")
		return candidate.path, nil
	}

	return "", fmt.Errorf("failed to load env file from %s", l.requested())
}

func (l *EnvLoader) requested() string {
	if l.value != nil {
		if trimmed := strings.TrimSpace(*l.value); trimmed != "" {
			return trimmed
		}
	}
	return l.defaultPath
}

func (l *EnvLoader) candidates() []envCandidate {
	out := make([]envCandidate, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(path, source string) {
		if path == "" {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, envCandidate{path: path, source: source})
	}

	add(strings.TrimSpace(os.Getenv(OverrideEnvVar)), "override")
	requested := l.requested()
	add(requested, "flag")
	if base := filepath.Base(requested); base != "." && base != string(filepath.Separator) {
		add(base, "basename")
	}
	add(l.defaultPath, "default")
	return out
}
