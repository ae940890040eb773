// Package report persists one directory of artifacts per correction session:
// the question, every attempt with its verdict and outcome, the final SQL and
// a machine-readable summary, plus a compressed archive for upload.
package report

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sqlpilot/internal/engine"
	"sqlpilot/internal/util"
	"sqlpilot/internal/validator"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Reporter writes session artifacts to disk.
type Reporter struct {
	OutputDir   string
	MaxDumpRows int
	Archive     bool

	mu         sync.Mutex
	sessionSeq int
}

// Session describes an allocated report directory.
type Session struct {
	ID  string
	Dir string
}

// Attempt is the persisted record of one loop iteration.
type Attempt struct {
	Number  int               `json:"number"`
	SQL     string            `json:"sql"`
	Verdict validator.Verdict `json:"verdict"`
	Outcome *engine.Outcome   `json:"outcome,omitempty"`
}

// Summary is the metadata persisted as summary.json. Field order is the
// stable contract the report aggregator reads.
type Summary struct {
	Question       string   `json:"question"`
	FinalSQL       string   `json:"final_sql"`
	Succeeded      bool     `json:"succeeded"`
	Attempts       int      `json:"attempts"`
	Reason         string   `json:"reason,omitempty"`
	Category       string   `json:"category,omitempty"`
	Error          string   `json:"error,omitempty"`
	Confidence     float64  `json:"confidence"`
	Issues         []string `json:"issues,omitempty"`
	RowCount       int      `json:"row_count"`
	ElapsedMs      int64    `json:"elapsed_ms"`
	SessionID      string   `json:"session_id"`
	SessionDir     string   `json:"session_dir"`
	ArchiveName    string   `json:"archive_name,omitempty"`
	ArchiveCodec   string   `json:"archive_codec,omitempty"`
	UploadLocation string   `json:"upload_location,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

// New creates a reporter that writes under outputDir.
func New(outputDir string, maxRows int) *Reporter {
	return &Reporter{OutputDir: outputDir, MaxDumpRows: maxRows, Archive: true}
}

const (
	archiveName  = "session.tar.zst"
	archiveCodec = "zstd"
)

// NewSession allocates a new session directory.
func (r *Reporter) NewSession() (Session, error) {
	r.mu.Lock()
	r.sessionSeq++
	seq := r.sessionSeq
	r.mu.Unlock()
	id := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	dir := filepath.Join(r.OutputDir, fmt.Sprintf("session_%04d_%s", seq, id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Session{}, err
	}
	_ = os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Correction Session\n\n- Question: question.txt\n- Per-attempt trace: attempts.json\n- Final query: final.sql\n- Terminal state: summary.json\n"), 0o644)
	return Session{ID: id, Dir: dir}, nil
}

// WriteSession persists a whole session in one call and returns the session
// directory. Artifact write failures after directory allocation are logged,
// not fatal; the summary is the one file that must land.
func (r *Reporter) WriteSession(sum Summary, attempts []Attempt) (string, error) {
	s, err := r.NewSession()
	if err != nil {
		return "", err
	}
	sum.SessionID = s.ID
	sum.SessionDir = filepath.Base(s.Dir)
	sum.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if err := r.WriteText(s, "question.txt", sum.Question+"\n"); err != nil {
		util.Warnf("write question failed: %v", err)
	}
	if sum.FinalSQL != "" {
		if err := r.WriteText(s, "final.sql", strings.TrimRight(sum.FinalSQL, ";\n")+";\n"); err != nil {
			util.Warnf("write final.sql failed: %v", err)
		}
	}
	if err := r.WriteAttempts(s, attempts); err != nil {
		util.Warnf("write attempts failed: %v", err)
	}
	if r.Archive {
		if name, codec, err := r.WriteArchive(s); err != nil {
			util.Warnf("write archive failed: %v", err)
		} else {
			sum.ArchiveName = name
			sum.ArchiveCodec = codec
		}
	}
	if err := r.WriteSummary(s, sum); err != nil {
		return "", err
	}
	return s.Dir, nil
}

// WriteSummary writes summary.json into the session directory.
func (r *Reporter) WriteSummary(s Session, sum Summary) error {
	f, err := os.Create(filepath.Join(s.Dir, "summary.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(sum)
}

// WriteAttempts writes attempts.json, a positional trace of every loop
// iteration. Result rows are capped so a wide first attempt cannot bloat the
// artifact.
func (r *Reporter) WriteAttempts(s Session, attempts []Attempt) error {
	capped := make([]Attempt, len(attempts))
	for i, a := range attempts {
		if a.Outcome != nil && r.MaxDumpRows > 0 && len(a.Outcome.Rows) > r.MaxDumpRows {
			o := *a.Outcome
			o.Rows = o.Rows[:r.MaxDumpRows]
			a.Outcome = &o
		}
		capped[i] = a
	}
	f, err := os.Create(filepath.Join(s.Dir, "attempts.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "attempts output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(capped)
}

// WriteText writes raw text content into the session directory.
func (r *Reporter) WriteText(s Session, name string, content string) error {
	path := filepath.Join(s.Dir, name)
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteArchive creates a compressed archive of the session directory,
// excluding the archive itself and summary.json, which stays readable in
// place for the aggregator.
func (r *Reporter) WriteArchive(s Session) (name string, codec string, err error) {
	archivePath := filepath.Join(s.Dir, archiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath || filepath.Base(path) == "summary.json" {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, src); err != nil {
			util.CloseWithErr(src, "archive source")
			return err
		}
		util.CloseWithErr(src, "archive source")
		return nil
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return archiveName, archiveCodec, nil
}
