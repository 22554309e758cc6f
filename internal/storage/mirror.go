package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mirror downloads every CSV or XLSX object under prefix into destDir,
// flattening keys to their base name. Names restricts the download to the
// given table base names when non-empty. Local paths are returned in listing
// order.
func Mirror(ctx context.Context, client ObjectStorage, prefix, destDir string, names []string) ([]string, error) {
	if destDir == "" {
		return nil, fmt.Errorf("destination dir is required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure download dir %s: %w", destDir, err)
	}

	objects, err := client.ListObjects(ctx, strings.TrimSpace(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list objects for prefix %s: %w", prefix, err)
	}

	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = struct{}{}
	}

	var paths []string
	for _, obj := range objects {
		base := path.Base(obj.Key)
		ext := strings.ToLower(path.Ext(base))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))]; !ok {
				continue
			}
		}

		dest := filepath.Join(destDir, strings.ToLower(base))
		if err := client.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		log.Debug().Str("key", obj.Key).Str("path", dest).Msg("storage: object mirrored")
		paths = append(paths, dest)
	}

	return paths, nil
}
