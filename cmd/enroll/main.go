// Command enroll registers staff reference embeddings from a dataset
// directory. Each subdirectory names one identity and holds one or more
// sample images; the first usable sample becomes the reference embedding.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/vision"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	datasetDir := flag.String("dataset", "", "dataset directory (defaults to gallery.dataset_dir from config)")
	register := flag.Bool("register", false, "create staff rows for identities not yet in the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, "text")

	dir := *datasetDir
	if dir == "" {
		dir = cfg.Gallery.DatasetDir
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "no dataset directory: pass -dataset or set gallery.dataset_dir")
		os.Exit(1)
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	analyzer, err := vision.NewAnalyzer(cfg.Vision)
	if err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	identities, err := listIdentities(dir)
	if err != nil {
		slog.Error("scan dataset", "dir", dir, "error", err)
		os.Exit(1)
	}
	if len(identities) == 0 {
		slog.Error("no identity directories found", "dir", dir)
		os.Exit(1)
	}

	ctx := context.Background()
	bar := progressbar.Default(int64(len(identities)), "enrolling")

	enrolled, skipped := 0, 0
	for _, userID := range identities {
		if err := enrollOne(ctx, db, analyzer, dir, userID, *register); err != nil {
			slog.Warn("skipping identity", "user_id", userID, "error", err)
			skipped++
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}

	slog.Info("enrollment complete", "enrolled", enrolled, "skipped", skipped)
}

func enrollOne(ctx context.Context, db *storage.PostgresStore, analyzer *vision.Analyzer, dir, userID string, register bool) error {
	sample, err := firstSample(filepath.Join(dir, userID))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(sample)
	if err != nil {
		return err
	}
	embedding, err := analyzer.Embed(data)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(sample), err)
	}

	if register {
		if err := db.CreateStaff(ctx, userID, displayName(userID)); err != nil {
			return err
		}
	}
	return db.UpsertStaffEmbedding(ctx, userID, embedding)
}

// listIdentities returns the dataset's subdirectory names in sorted order.
func listIdentities(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// firstSample returns the first image file in the identity directory.
func firstSample(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no sample images in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// displayName derives a readable name from a directory-style identifier.
func displayName(userID string) string {
	return strings.TrimSpace(strings.ReplaceAll(userID, "_", " "))
}

func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
