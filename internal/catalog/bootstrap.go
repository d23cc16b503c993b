package catalog

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	pkgredis "github.com/DarkSmileee/BlockShelf/pkg/redis"
	"github.com/DarkSmileee/BlockShelf/pkg/security"
	"gorm.io/gorm"
)

const (
	jobTTL        = time.Hour
	minBatchSize  = 100
	maxBatchSize  = 10000
	maxMessages   = 200
	jobTokenBytes = 16
)

type jobStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	JobKey(jobID string) string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BootstrapService stages catalog dump uploads and loads them in batches.
type BootstrapService interface {
	Prepare(ctx context.Context, upload io.Reader, filename string, size int64) (PrepareResult, error)
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// BootstrapParams bundles the dependencies for NewBootstrapService. DB is
// satisfied by *db.Client.
type BootstrapParams struct {
	DB     txRunner
	Jobs   jobStore
	Config config.ImportConfig
	Logger *logger.Logger
}

type bootstrapService struct {
	db     txRunner
	jobs   jobStore
	cfg    config.ImportConfig
	logger *logger.Logger
}

// NewBootstrapService validates the dependency set and returns the loader.
func NewBootstrapService(params BootstrapParams) (BootstrapService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bootstrap db client is required")
	}
	if params.Jobs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bootstrap job store is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bootstrap logger is required")
	}
	return &bootstrapService{
		db:     params.DB,
		jobs:   params.Jobs,
		cfg:    params.Config,
		logger: params.Logger,
	}, nil
}

func (s *bootstrapService) Prepare(ctx context.Context, upload io.Reader, filename string, size int64) (PrepareResult, error) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if size > maxBytes {
		return PrepareResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("upload exceeds %dMB limit", s.cfg.MaxUploadMB))
	}

	jobID, err := security.GenerateToken(jobTokenBytes)
	if err != nil {
		return PrepareResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate job id")
	}

	dir, err := os.MkdirTemp("", "blockshelf-bootstrap-")
	if err != nil {
		return PrepareResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create staging dir")
	}

	files, err := s.stage(dir, upload, filename, maxBytes)
	if err != nil {
		_ = os.RemoveAll(dir)
		return PrepareResult{}, err
	}
	if len(files) == 0 {
		_ = os.RemoveAll(dir)
		return PrepareResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			"upload contains no colors.csv, parts.csv or elements.csv")
	}

	counts := make(map[string]int, len(files))
	total := 0
	for kind, path := range files {
		n, err := countDataRows(path)
		if err != nil {
			_ = os.RemoveAll(dir)
			return PrepareResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "count rows in "+kind)
		}
		counts[kind] = n
		total += n
	}
	if total > s.cfg.BootstrapMaxRows {
		_ = os.RemoveAll(dir)
		return PrepareResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("upload has %d rows, cap is %d", total, s.cfg.BootstrapMaxRows))
	}

	job := BootstrapJob{
		ID:        jobID,
		Dir:       dir,
		Files:     files,
		Counts:    counts,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		_ = os.RemoveAll(dir)
		return PrepareResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode job")
	}
	if err := s.jobs.Set(ctx, s.jobs.JobKey(jobID), payload, jobTTL); err != nil {
		_ = os.RemoveAll(dir)
		return PrepareResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store job")
	}

	return PrepareResult{JobID: jobID, Counts: counts, Total: total}, nil
}

// stage writes the upload's CSV files into dir, keyed by dataset kind.
func (s *bootstrapService) stage(dir string, upload io.Reader, filename string, maxBytes int64) (map[string]string, error) {
	lower := strings.ToLower(filename)
	limited := io.LimitReader(upload, maxBytes+1)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		tmp := filepath.Join(dir, "upload.zip")
		n, err := copyToFile(tmp, limited)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage upload")
		}
		if n > maxBytes {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload exceeds size limit")
		}
		return extractZip(tmp, dir)

	case strings.HasSuffix(lower, ".csv.gz"):
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read gzip upload")
		}
		defer gz.Close()
		return stageSingleCSV(dir, gz, strings.TrimSuffix(lower, ".gz"))

	case strings.HasSuffix(lower, ".csv"):
		return stageSingleCSV(dir, limited, lower)

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload must be .zip, .csv or .csv.gz")
	}
}

func stageSingleCSV(dir string, src io.Reader, filename string) (map[string]string, error) {
	kind := classifyFilename(filename)
	if kind == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"cannot tell whether the file holds colors, parts or elements; name it accordingly")
	}
	dst := filepath.Join(dir, kind+".csv")
	if _, err := copyToFile(dst, src); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage csv")
	}
	return map[string]string{kind: dst}, nil
}

func extractZip(zipPath, dir string) (map[string]string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open zip upload")
	}
	defer reader.Close()

	files := make(map[string]string)
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		kind := classifyFilename(filepath.Base(entry.Name))
		if kind == "" {
			continue
		}
		src, err := entry.Open()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read zip entry")
		}
		dst := filepath.Join(dir, kind+".csv")
		_, copyErr := copyToFile(dst, src)
		src.Close()
		if copyErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, copyErr, "extract zip entry")
		}
		files[kind] = dst
	}
	return files, nil
}

func classifyFilename(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "element"):
		return KindElements
	case strings.Contains(name, "color"):
		return KindColors
	case strings.Contains(name, "part"):
		return KindParts
	}
	return ""
}

func copyToFile(path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func countDataRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := newCSVReader(f)
	rows := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		rows++
	}
	if rows == 0 {
		return 0, nil
	}
	return rows - 1, nil
}

func (s *bootstrapService) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if !ValidKind(req.Kind) {
		return RunResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown dataset kind")
	}
	if req.Offset < 0 {
		return RunResult{}, pkgerrors.New(pkgerrors.CodeValidation, "offset must not be negative")
	}

	batchSize := req.BatchSize
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	job, err := s.loadJob(ctx, req.JobID)
	if err != nil {
		return RunResult{}, err
	}
	path, ok := job.Files[req.Kind]
	if !ok {
		return RunResult{}, pkgerrors.New(pkgerrors.CodeValidation, "upload has no "+req.Kind+" file")
	}

	rows, header, err := readBatch(path, req.Offset, batchSize)
	if err != nil {
		return RunResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read "+req.Kind+" rows")
	}

	result := RunResult{
		Kind:     req.Kind,
		Total:    job.Counts[req.Kind],
		Messages: []string{},
	}

	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		for i, row := range rows {
			line := req.Offset + i + 2 // 1-based, after the header
			created, err := s.loadRow(ctx, repo, req.Kind, header, row)
			if err != nil {
				result.Skipped++
				if len(result.Messages) < maxMessages {
					result.Messages = append(result.Messages, fmt.Sprintf("line %d: %v", line, err))
				}
				continue
			}
			result.Processed++
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if txErr != nil {
		return RunResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load batch")
	}

	result.Offset = req.Offset + len(rows)
	result.Done = len(rows) < batchSize
	return result, nil
}

func (s *bootstrapService) loadJob(ctx context.Context, jobID string) (BootstrapJob, error) {
	raw, err := s.jobs.Get(ctx, s.jobs.JobKey(jobID))
	if err != nil {
		if pkgredis.IsNil(err) {
			return BootstrapJob{}, pkgerrors.New(pkgerrors.CodeNotFound, "bootstrap job not found or expired")
		}
		return BootstrapJob{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	var job BootstrapJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return BootstrapJob{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode job")
	}
	return job, nil
}

// loadRow upserts one CSV row. The created flag distinguishes inserts from
// refreshes for the batch report.
func (s *bootstrapService) loadRow(ctx context.Context, repo *Repository, kind string, header map[string]int, row []string) (bool, error) {
	field := func(name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	switch kind {
	case KindColors:
		id, err := strconv.Atoi(field("id"))
		if err != nil {
			return false, fmt.Errorf("bad color id %q", field("id"))
		}
		exists, err := repo.ColorExists(ctx, id)
		if err != nil {
			return false, err
		}
		return !exists, repo.UpsertColor(ctx, models.Color{
			ID:      id,
			Name:    field("name"),
			RGB:     field("rgb"),
			IsTrans: parseBool(field("is_trans")),
		})

	case KindParts:
		partNum := field("part_num")
		if partNum == "" {
			return false, fmt.Errorf("missing part_num")
		}
		var catID *int
		if raw := field("part_cat_id"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				catID = &v
			}
		}
		exists, err := repo.PartExists(ctx, partNum)
		if err != nil {
			return false, err
		}
		return !exists, repo.UpsertPart(ctx, models.Part{
			PartNum:   partNum,
			Name:      field("name"),
			PartCatID: catID,
			ImageURL:  field("image_url"),
		})

	case KindElements:
		elementID := field("element_id")
		partNum := field("part_num")
		colorID, err := strconv.Atoi(field("color_id"))
		if elementID == "" || partNum == "" || err != nil {
			return false, fmt.Errorf("incomplete element row")
		}
		exists, err := repo.ElementExists(ctx, elementID)
		if err != nil {
			return false, err
		}
		return !exists, repo.UpsertElement(ctx, elementID, partNum, colorID)
	}
	return false, fmt.Errorf("unknown kind %q", kind)
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "t", "true", "1", "y", "yes":
		return true
	}
	return false
}

// readBatch returns up to limit data rows starting at offset, plus the
// header column index.
func readBatch(path string, offset, limit int) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := newCSVReader(f)
	headerRow, err := reader.Read()
	if err == io.EOF {
		return nil, map[string]int{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.ToLower(strings.TrimSpace(stripBOM(name)))] = i
	}

	for skipped := 0; skipped < offset; skipped++ {
		if _, err := reader.Read(); err == io.EOF {
			return nil, header, nil
		} else if err != nil {
			return nil, nil, err
		}
	}

	var rows [][]string
	for len(rows) < limit {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return reader
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
