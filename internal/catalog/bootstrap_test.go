package catalog

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryJobStore struct {
	data map[string]string
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{data: map[string]string{}}
}

func (m *memoryJobStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryJobStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return nil
}

func (m *memoryJobStore) JobKey(jobID string) string { return "bs:rebjob:" + jobID }

type catalogTxRunner struct {
	db *gorm.DB
}

func (r catalogTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newBootstrap(t *testing.T, db *gorm.DB, jobs jobStore) BootstrapService {
	t.Helper()
	svc, err := NewBootstrapService(BootstrapParams{
		DB:   catalogTxRunner{db: db},
		Jobs: jobs,
		Config: config.ImportConfig{
			MaxUploadMB:      50,
			MaxRows:          10000,
			BootstrapMaxRows: 1000000,
		},
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc
}

func buildZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestPrepareStagesZipAndCountsRows(t *testing.T) {
	db := setupCatalogTestDB(t)
	jobs := newMemoryJobStore()
	svc := newBootstrap(t, db, jobs)

	upload := buildZip(t, map[string]string{
		"colors.csv":   "id,name,rgb,is_trans\n4,Red,C91A09,f\n1,Blue,0055BF,f\n",
		"parts.csv":    "part_num,name,part_cat_id\n3001,Brick 2 x 4,11\n",
		"elements.csv": "element_id,part_num,color_id\n300126,3001,4\n",
	})

	res, err := svc.Prepare(context.Background(), upload, "rebrickable.zip", int64(upload.Len()))
	require.NoError(t, err)
	require.NotEmpty(t, res.JobID)
	require.Equal(t, 2, res.Counts[KindColors])
	require.Equal(t, 1, res.Counts[KindParts])
	require.Equal(t, 1, res.Counts[KindElements])
	require.Equal(t, 4, res.Total)

	if _, ok := jobs.data[jobs.JobKey(res.JobID)]; !ok {
		t.Fatal("expected job metadata in the store")
	}
}

func TestPrepareRejectsUnknownExtension(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newBootstrap(t, db, newMemoryJobStore())

	_, err := svc.Prepare(context.Background(), strings.NewReader("x"), "dump.tar", 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrepareRejectsOversizedUpload(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newBootstrap(t, db, newMemoryJobStore())

	_, err := svc.Prepare(context.Background(), strings.NewReader("x"), "colors.csv", 51<<20)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunLoadsBatchesAndReportsCursor(t *testing.T) {
	db := setupCatalogTestDB(t)
	jobs := newMemoryJobStore()
	svc := newBootstrap(t, db, jobs)

	upload := buildZip(t, map[string]string{
		"colors.csv": "id,name,rgb,is_trans\n4,Red,C91A09,f\n1,Blue,0055BF,f\n182,Trans-Orange,F08F1C,t\n",
	})
	prep, err := svc.Prepare(context.Background(), upload, "colors.zip", int64(upload.Len()))
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), RunRequest{
		JobID:     prep.JobID,
		Kind:      KindColors,
		Offset:    0,
		BatchSize: 1, // clamped up to the minimum, still loads everything
	})
	require.NoError(t, err)
	require.True(t, res.Done)
	require.Equal(t, 3, res.Processed)
	require.Equal(t, 3, res.Created)
	require.Equal(t, 3, res.Offset)

	color, err := NewRepository(db).GetColor(context.Background(), 182)
	require.NoError(t, err)
	if !color.IsTrans || color.Name != "Trans-Orange" {
		t.Fatalf("unexpected color row: %+v", color)
	}

	// a second pass updates instead of creating
	again, err := svc.Run(context.Background(), RunRequest{JobID: prep.JobID, Kind: KindColors})
	require.NoError(t, err)
	require.Equal(t, 3, again.Updated)
	require.Equal(t, 0, again.Created)
}

func TestRunSkipsMalformedRowsWithMessages(t *testing.T) {
	db := setupCatalogTestDB(t)
	jobs := newMemoryJobStore()
	svc := newBootstrap(t, db, jobs)

	upload := buildZip(t, map[string]string{
		"elements.csv": "element_id,part_num,color_id\n300126,3001,4\n,missing,x\n300101,3001,1\n",
	})
	prep, err := svc.Prepare(context.Background(), upload, "elements.zip", int64(upload.Len()))
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), RunRequest{JobID: prep.JobID, Kind: KindElements})
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 1, res.Skipped)
	require.Len(t, res.Messages, 1)
	if !strings.Contains(res.Messages[0], "line 3") {
		t.Fatalf("expected line number in message, got %q", res.Messages[0])
	}

	var count int64
	require.NoError(t, db.Model(&models.Element{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestRunUnknownJobIsNotFound(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newBootstrap(t, db, newMemoryJobStore())

	_, err := svc.Run(context.Background(), RunRequest{JobID: "nope", Kind: KindColors})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStageSingleCSVByName(t *testing.T) {
	dir := t.TempDir()
	files, err := stageSingleCSV(dir, strings.NewReader("id,name,rgb,is_trans\n4,Red,C91A09,f\n"), "colors.csv")
	require.NoError(t, err)
	path, ok := files[KindColors]
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "colors.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Red")
}
