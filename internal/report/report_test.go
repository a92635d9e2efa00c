package report

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dg-agenda/internal/model"
)

var at = time.Date(2025, 11, 6, 10, 0, 0, 0, time.UTC)

func sample() []model.Appointment {
	return []model.Appointment{
		{ID: "a", Fields: model.Fields{
			Date: "2025-11-07", Time: "15:00", Interlocutor: "KOCCGA",
			Purpose: "Présentation du projet", Location: "FDCUIC", Status: model.StatusToValidate,
		}},
		{ID: "b", Fields: model.Fields{
			Date: "2025-11-10", Time: "09:30", Interlocutor: "DJ Taff",
			Purpose: "Audience", Location: "Cabinet", Status: model.StatusConfirmed, Comments: "Date à confirmer",
		}},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Rendez-vous_DG_2025-11-06.xlsx", FileName(FormatXLSX, Options{GeneratedAt: at}))
	assert.Equal(t, "selection-Rendez-vous_DG_2025-11-06.pdf", FileName(FormatPDF, Options{GeneratedAt: at, Selection: true}))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestGeneratedLine(t *testing.T) {
	assert.Equal(t, "Généré le 06 novembre 2025 à 10:00", generated(at))
}

func TestSpreadsheetLayout(t *testing.T) {
	data, err := Spreadsheet(sample(), Options{GeneratedAt: at})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheet}, f.GetSheetList())
	cell := func(ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, Organization, cell("A1"))
	assert.Equal(t, FullName, cell("A2"))
	assert.Equal(t, Title, cell("A3"))
	assert.Equal(t, "Généré le 06 novembre 2025 à 10:00", cell("A5"))
	assert.Equal(t, "Date", cell("A7"))
	assert.Equal(t, "Commentaires / Préparation", cell("G7"))

	assert.Equal(t, "2025-11-07", cell("A8"))
	assert.Equal(t, "KOCCGA", cell("C8"))
	assert.Equal(t, "À valider", cell("F8"))
	assert.Equal(t, "Confirmé", cell("F9"))
	assert.Equal(t, "Date à confirmer", cell("G9"))

	merged, err := f.GetMergeCells(sheet)
	require.NoError(t, err)
	assert.Len(t, merged, 4)
}

func TestSpreadsheetEmpty(t *testing.T) {
	data, err := Spreadsheet(nil, Options{GeneratedAt: at})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestPDF(t *testing.T) {
	data, err := PDF(sample(), Options{GeneratedAt: at})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFPaginatesLongLists(t *testing.T) {
	var items []model.Appointment
	for i := 0; i < 120; i++ {
		items = append(items, sample()...)
	}
	short, err := PDF(sample(), Options{GeneratedAt: at})
	require.NoError(t, err)
	long, err := PDF(items, Options{GeneratedAt: at})
	require.NoError(t, err)
	assert.Greater(t, len(long), len(short))
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render("csv", sample(), Options{})
	assert.Error(t, err)
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	dst, err := FileSink{Dir: dir}.Put(context.Background(), "r.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "r.pdf"), dst)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBucketSinkRequiresBucket(t *testing.T) {
	_, err := NewBucketSink(BucketConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestBucketSinkUploads(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		ct   string
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		mu.Lock()
		path, ct, body = r.URL.Path, r.Header.Get("Content-Type"), buf.Bytes()
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewBucketSink(BucketConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "ak",
		SecretKey: "sk",
		Region:    "us-east-1",
		Bucket:    "exports",
		Prefix:    "dg/",
	})
	require.NoError(t, err)

	loc, err := sink.Put(context.Background(), "Rendez-vous_DG_2025-11-06.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/dg/Rendez-vous_DG_2025-11-06.pdf", loc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/exports/dg/Rendez-vous_DG_2025-11-06.pdf", path)
	assert.Equal(t, "application/pdf", ct)
	assert.Contains(t, string(body), "%PDF-1.3")
}
