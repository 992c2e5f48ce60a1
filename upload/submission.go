package upload

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/humanmadecert/hmcert/fingerprint"
)

// MaxTotalSize is the default aggregate size limit of one upload: 5 GiB.
const MaxTotalSize int64 = 5 * 1024 * 1024 * 1024

// Submission is everything an artist provides for certification.
type Submission struct {
	Name      string
	Email     string
	TrackName string
	// AuthorID is the account the upload is recorded under, if any.
	AuthorID string
	Master   fingerprint.DiskFile
	Project  []fingerprint.DiskFile
}

// NewSubmission loads the master file and project folder from disk.
func NewSubmission(name, email, track, masterPath, projectDir string) (Submission, error) {
	master, err := fingerprint.NewDiskFile(masterPath)
	if err != nil {
		return Submission{}, fmt.Errorf("master file: %w", err)
	}
	project, err := fingerprint.FromDir(projectDir)
	if err != nil {
		return Submission{}, fmt.Errorf("project folder: %w", err)
	}
	return Submission{
		Name:      name,
		Email:     email,
		TrackName: track,
		Master:    master,
		Project:   project,
	}, nil
}

// Validate checks that every required field is present.
func (s Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(s.TrackName) == "" {
		missing = append(missing, "track name")
	}
	if s.Master.Path == "" {
		missing = append(missing, "master file")
	}
	if len(s.Project) == 0 {
		missing = append(missing, "project folder")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// Files returns the master followed by the project files.
func (s Submission) Files() []fingerprint.DiskFile {
	return append([]fingerprint.DiskFile{s.Master}, s.Project...)
}

// TotalSize sums the size of every file in the submission.
func (s Submission) TotalSize() int64 {
	var total int64
	for _, f := range s.Files() {
		total += f.Size
	}
	return total
}

// CheckSize rejects submissions larger than limit. A non-positive limit
// selects MaxTotalSize.
func (s Submission) CheckSize(limit int64) error {
	if limit <= 0 {
		limit = MaxTotalSize
	}
	if total := s.TotalSize(); total > limit {
		return fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, FormatBytes(total), FormatBytes(limit))
	}
	return nil
}

// Percent returns round(done/total*100), or 0 when total is 0.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// FormatBytes renders a byte count for people, in binary units.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
