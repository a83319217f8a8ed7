package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
	fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

// CreateSQLMigration writes an empty goose migration named
// <dir>/<version>_<slug>.sql, where version is now in UTC.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now.UTC().Format(versionLayout), slug))
	body := "-- +goose Up\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n\n" +
		"-- +goose Down\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n"

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		return "", multierr.Append(fmt.Errorf("write %q: %w", path, err), f.Close())
	}
	return path, f.Close()
}

// ValidateDir checks every .sql file in dir and reports all problems at once:
// file naming, duplicate versions, missing Up/Down sections and unbalanced
// statement blocks.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		match := fileNameRe.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected <YYYYMMDDHHMMSS>_<name>.sql", name))
			continue
		}
		if _, err := time.Parse(versionLayout, match[1]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: version is not a timestamp", name))
		}
		if prev, ok := versions[match[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: version already used by %s", name, prev))
		}
		versions[match[1]] = name

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, checkAnnotations(name, string(data)))
	}
	return errs
}

func checkAnnotations(name, body string) error {
	var errs error
	for _, section := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(body, section) {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, section))
		}
	}
	begins := strings.Count(body, "-- +goose StatementBegin")
	ends := strings.Count(body, "-- +goose StatementEnd")
	if begins != ends {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d StatementBegin but %d StatementEnd", name, begins, ends))
	}
	return errs
}
