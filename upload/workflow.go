package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/logging"
	"github.com/humanmadecert/hmcert/metrics"
	"github.com/humanmadecert/hmcert/storage"
)

const defaultContentType = "application/octet-stream"

// Event reports progress after each stored object.
type Event struct {
	Key      string
	Uploaded int
	Total    int
	Percent  int
}

// Progress receives upload progress events.
type Progress func(Event)

// Recorder records completed uploads. *catalogue.Store implements it.
type Recorder interface {
	AddTrack(ctx context.Context, t *catalogue.Track) error
}

// Workflow fingerprints a submission, stores every file under the
// fingerprint-derived prefix and records the result.
type Workflow struct {
	Store        storage.Store
	Catalogue    Recorder
	Order        fingerprint.Order
	Workers      int
	MaxTotalSize int64
	Metrics      *metrics.Metrics
	Log          *zap.Logger
	Progress     Progress
}

// Result describes a completed upload.
type Result struct {
	Track  catalogue.Track
	Prefix string
	Keys   []string
}

// Run validates sub, fingerprints it once, uploads the master and then each
// project file in order, and records the track. Any failure aborts the run.
func (w *Workflow) Run(ctx context.Context, sub Submission) (*Result, error) {
	log := logging.OrNop(w.Log)
	if w.Store == nil {
		return nil, ErrNoStore
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := sub.CheckSize(w.MaxTotalSize); err != nil {
		return nil, err
	}

	files := sub.Files()
	start := time.Now()
	hash, err := fingerprint.Compute(ctx, fingerprint.AsFiles(files),
		fingerprint.WithOrder(w.Order),
		fingerprint.WithWorkers(w.Workers),
	)
	w.Metrics.ObserveFingerprint(start, sub.TotalSize(), err)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	prefix := Prefix(sub.Email, sub.Name, sub.TrackName, hash)
	log.Info("upload started",
		zap.String("hash", hash),
		zap.Int("files", len(files)),
		zap.String("size", FormatBytes(sub.TotalSize())),
	)

	keys := make([]string, 0, len(files))
	keys = append(keys, MasterKey(prefix, sub.Master.Path))
	for _, f := range sub.Project {
		keys = append(keys, ProjectKey(prefix, f.RelativePath()))
	}

	for i, f := range files {
		if err := w.put(ctx, keys[i], f); err != nil {
			return nil, err
		}
		if w.Progress != nil {
			w.Progress(Event{
				Key:      keys[i],
				Uploaded: i + 1,
				Total:    len(files),
				Percent:  Percent(i+1, len(files)),
			})
		}
	}

	track := catalogue.Track{
		Title:      sub.TrackName,
		ArtistName: sub.Name,
		Email:      sub.Email,
		AuthorID:   sub.AuthorID,
		FolderHash: hash,
	}
	if w.Catalogue != nil {
		if err := w.Catalogue.AddTrack(ctx, &track); err != nil {
			return nil, fmt.Errorf("record upload: %w", err)
		}
		if w.Metrics != nil {
			w.Metrics.UploadsRecorded.Inc()
		}
	}
	log.Info("upload complete", zap.String("hash", hash), zap.String("prefix", prefix))
	return &Result{Track: track, Prefix: prefix, Keys: keys}, nil
}

func (w *Workflow) put(ctx context.Context, key string, f fingerprint.DiskFile) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()

	if err := w.Store.Put(ctx, key, fh, f.Size, ContentType(f.Path)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}
