package qwi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"econstats-engine/internal/domain"
)

func TestExportName(t *testing.T) {
	cases := map[string]string{
		"Upload/USA_DATA.qwi":    "QWI_USA.csv",
		"Upload/output_2022.qwi": "QWI_2022.csv",
		"output_2019.qwi":        "QWI_2019.csv",
	}
	for in, want := range cases {
		got, err := ExportName("QWI", in)
		if err != nil || got != want {
			t.Errorf("ExportName(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ExportName("QWI", "notes.qwi"); err == nil {
		t.Error("expected error for name without year")
	}
}

func writeDescriptors(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var out []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		out = append(out, p)
	}
	return out
}

func TestDownloadRenamesExports(t *testing.T) {
	upload, out := t.TempDir(), t.TempDir()
	files := writeDescriptors(t, upload, "USA_DATA.qwi", "output_2022.qwi")
	d := newFakeDriver()
	d.downloadDir = t.TempDir()

	results, err := Download(context.Background(), d, files, out, "QWI", nil)
	if err != nil {
		t.Fatal(err)
	}
	if tally := domain.Count(results); tally.OK != 2 {
		t.Fatalf("results = %+v", results)
	}
	for name, src := range map[string]string{"QWI_USA.csv": "USA_DATA.qwi", "QWI_2022.csv": "output_2022.qwi"} {
		b, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(b), src) {
			t.Fatalf("%s holds %q, want export of %s", name, b, src)
		}
	}
	if missing := MissingExports(out, "QWI", files); len(missing) != 0 {
		t.Fatalf("missing = %v", missing)
	}
}

func TestMissingExports(t *testing.T) {
	upload, out := t.TempDir(), t.TempDir()
	files := writeDescriptors(t, upload, "output_2021.qwi", "output_2022.qwi", "USA_DATA.qwi", "draft.qwi")
	for _, n := range []string{"QWI_2021.csv", "QWI_USA.csv"} {
		if err := os.WriteFile(filepath.Join(out, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	for _, f := range MissingExports(out, "QWI", files) {
		got = append(got, filepath.Base(f))
	}
	if strings.Join(got, ",") != "output_2022.qwi,draft.qwi" {
		t.Fatalf("missing = %v", got)
	}
}

func TestDownloadContinuesAfterFailure(t *testing.T) {
	upload, out := t.TempDir(), t.TempDir()
	files := writeDescriptors(t, upload, "output_2021.qwi", "output_2022.qwi", "USA_DATA.qwi")
	d := newFakeDriver()
	d.downloadDir = t.TempDir()
	d.failExport = map[string]ExportPhase{"output_2021.qwi": ExportDownload}

	var units []string
	results, err := Download(context.Background(), d, files, out, "QWI", func(r domain.UnitResult) { units = append(units, r.Unit) })
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 3 {
		t.Fatalf("progress = %v", units)
	}
	r := results[0]
	if r.Outcome != domain.OutcomeSkipped || !strings.HasPrefix(r.Reason, "download: ") {
		t.Fatalf("2021 result = %+v", r)
	}
	if _, err := os.Stat(filepath.Join(out, "QWI_2021.csv")); !os.IsNotExist(err) {
		t.Fatalf("QWI_2021.csv should not exist: %v", err)
	}
	for _, n := range []string{"QWI_2022.csv", "QWI_USA.csv"} {
		if _, err := os.Stat(filepath.Join(out, n)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDownloadSkipsUnnamedDescriptor(t *testing.T) {
	upload := t.TempDir()
	files := writeDescriptors(t, upload, "draft.qwi")
	d := newFakeDriver()
	d.downloadDir = t.TempDir()

	results, err := Download(context.Background(), d, files, t.TempDir(), "QWI", nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Outcome != domain.OutcomeSkipped || d.opens != 0 {
		t.Fatalf("results = %+v opens = %d", results, d.opens)
	}
}

func TestDownloadSkipsUnreadableDescriptor(t *testing.T) {
	upload, out := t.TempDir(), t.TempDir()
	files := writeDescriptors(t, upload, "output_2022.qwi")
	if err := os.WriteFile(files[0], []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := newFakeDriver()
	d.downloadDir = t.TempDir()

	results, err := Download(context.Background(), d, files, out, "QWI", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Outcome != domain.OutcomeSkipped || !strings.Contains(results[0].Reason, "decode") {
		t.Fatalf("results = %+v", results)
	}
	if d.opens != 0 {
		t.Fatalf("browser opened %d times for an unreadable descriptor", d.opens)
	}
}
