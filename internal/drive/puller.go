package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// PullOptions controls which Drive files land in the local source directory.
type PullOptions struct {
	FolderID string
	DestDir  string
	// Tables restricts the pull to files whose base name matches; empty pulls
	// every CSV and XLSX file.
	Tables []string
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
}

// Puller mirrors tabular Drive files into a directory the file source reads.
type Puller struct {
	remote Remote
}

func NewPuller(remote Remote) *Puller {
	return &Puller{remote: remote}
}

// Pull downloads the selected files and returns the local CSV paths. XLSX
// files and native sheets are converted from their first sheet.
func (p *Puller) Pull(ctx context.Context, opts PullOptions) ([]string, error) {
	if opts.DestDir == "" {
		return nil, fmt.Errorf("destination dir is required")
	}
	if err := os.MkdirAll(opts.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination dir: %w", err)
	}

	files, err := p.remote.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	selected := selectFiles(files, opts.Tables)
	log.Info().
		Str("folder_id", opts.FolderID).
		Int("listed", len(files)).
		Int("selected", len(selected)).
		Msg("drive: pulling source tables")

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(selected),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("pulling tables"),
			progressbar.OptionShowCount(),
		)
	}

	var localPaths []string
	for _, f := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, err := p.pullOne(ctx, f, opts.DestDir)
		if err != nil {
			return nil, err
		}
		localPaths = append(localPaths, path)

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	return localPaths, nil
}

func (p *Puller) pullOne(ctx context.Context, f *File, destDir string) (string, error) {
	base := tableName(f.Name)
	csvPath := filepath.Join(destDir, base+".csv")

	if fileKind(f) == ".csv" {
		if err := p.download(ctx, f, destDir, csvPath); err != nil {
			return "", err
		}
		return csvPath, nil
	}

	xlsxPath := filepath.Join(destDir, "."+base+".xlsx")
	if err := p.download(ctx, f, destDir, xlsxPath); err != nil {
		return "", err
	}
	defer os.Remove(xlsxPath)

	if err := convertXLSXToCSV(xlsxPath, csvPath); err != nil {
		return "", fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
	}
	return csvPath, nil
}

// download writes through a temp file so readers never see a partial table.
func (p *Puller) download(ctx context.Context, f *File, dir, dest string) error {
	tmp, err := os.CreateTemp(dir, ".pull-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := p.remote.DownloadFile(ctx, f, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dest)
}

func selectFiles(files []*File, tables []string) []*File {
	want := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		want[strings.ToLower(t)] = struct{}{}
	}

	var out []*File
	for _, f := range files {
		if fileKind(f) == "" {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[tableName(f.Name)]; !ok {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// fileKind returns ".csv" or ".xlsx" for pullable files and "" otherwise.
func fileKind(f *File) string {
	if f.IsSpreadsheet() {
		return ".xlsx"
	}
	switch ext := strings.ToLower(filepath.Ext(f.Name)); ext {
	case ".csv", ".xlsx":
		return ext
	}
	return ""
}

func tableName(name string) string {
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".csv") || strings.EqualFold(ext, ".xlsx") {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.ToLower(strings.TrimSpace(name))
}
