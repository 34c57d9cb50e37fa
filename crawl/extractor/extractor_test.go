package extractor

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractPosix(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"la/disp_20200101_20200125.tif",
		"la/disp_20200101_20200113.tif",
		"la/temporal_coherence.tif",
		"la/readme.txt",
		"hawaii/disp_20210101_20210113.tif",
		"hawaii/skip/disp_20210101_20210125.tif",
	} {
		touch(t, filepath.Join(root, name))
	}

	files, err := ExtractPosix(root, 4, `(type=='d' && path!~'skip$') || path=~'\.tif$'`, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 4 {
		t.Fatalf("expected 4 files, got %d: %v", len(files), files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1].FilePath >= files[i].FilePath {
			t.Errorf("results not sorted: %s >= %s", files[i-1].FilePath, files[i].FilePath)
		}
	}
	for _, f := range files {
		if len(f.ID) != 32 || f.Size != 1 {
			t.Errorf("unexpected posix info %+v", f)
		}
	}

	datasets, err := GroupFiles(files, GroupOptions{Group: `/(?P<dataset>[^/]+)/[^/]+\.tif$`, Mask: `coherence`})
	if err != nil {
		t.Fatal(err)
	}
	if len(datasets) != 2 || datasets[0].Name != "hawaii" || datasets[1].Name != "la" {
		t.Fatalf("unexpected datasets %+v", datasets)
	}
	la := datasets[1]
	if len(la.FileList) != 2 || filepath.Base(la.FileList[0]) != "disp_20200101_20200113.tif" {
		t.Errorf("unexpected file list %v", la.FileList)
	}
	if len(la.MaskFileList) != 1 || filepath.Base(la.MaskFileList[0]) != "temporal_coherence.tif" {
		t.Errorf("unexpected mask list %v", la.MaskFileList)
	}
	if len(datasets[0].MaskFileList) != 0 {
		t.Errorf("hawaii should have no masks: %v", datasets[0].MaskFileList)
	}
}

func TestPatternExpression(t *testing.T) {
	if expr, err := parsePatternExpression("  "); err != nil || expr != nil {
		t.Errorf("empty pattern should be nil, got %v %v", expr, err)
	}
	if _, err := parsePatternExpression("size > 10"); err == nil {
		t.Errorf("expected error for unknown variable")
	}
	expr, err := parsePatternExpression(`path=~'\.tif$'`)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := matchObject(expr, "/vsis3/b/a.tif"); err != nil || !ok {
		t.Errorf("expected match, got %v %v", ok, err)
	}
	if ok, _ := matchObject(expr, "/vsis3/b/a.xml"); ok {
		t.Errorf("unexpected match")
	}
	expr, _ = parsePatternExpression(`path`)
	if _, err := matchObject(expr, "/vsis3/b/a.tif"); err == nil {
		t.Errorf("expected error for non boolean result")
	}
}

func TestGroupFilesErrors(t *testing.T) {
	if _, err := GroupFiles(nil, GroupOptions{Group: `(`}); err == nil {
		t.Errorf("expected invalid regex error")
	}
	if _, err := GroupFiles(nil, GroupOptions{Group: `^(.*)/`}); err == nil {
		t.Errorf("expected missing dataset group error")
	}

	files := []*PosixInfo{{FilePath: "/d/a/1.tif"}, {FilePath: "/d/a/2.tif"}, {FilePath: "/d/a/3.tif"},
		{FilePath: "/d/a/m1.tif"}, {FilePath: "/d/a/m2.tif"}, {FilePath: "/d/b/m1.tif"}}
	datasets, err := GroupFiles(files, GroupOptions{Mask: `^m`})
	if err != nil {
		t.Fatal(err)
	}
	if len(datasets) != 1 || datasets[0].Name != "/d/a" {
		t.Fatalf("unexpected datasets %+v", datasets)
	}
	if len(datasets[0].MaskFileList) != 0 {
		t.Errorf("mismatched masks should be ignored: %v", datasets[0].MaskFileList)
	}
}

func TestS3Paths(t *testing.T) {
	loc, err := ParseS3URL("s3://opera-disp/la/2020/")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Bucket != "opera-disp" || loc.Prefix != "la/2020/" {
		t.Errorf("unexpected location %+v", loc)
	}
	if loc, err = ParseS3URL("s3://bucket"); err != nil || loc.Prefix != "" {
		t.Errorf("unexpected bucket only location %+v %v", loc, err)
	}
	if _, err := ParseS3URL("s3:///key"); err == nil {
		t.Errorf("expected missing bucket error")
	}
	if _, err := ParseS3URL("/data"); err == nil {
		t.Errorf("expected error for non s3 root")
	}
	if p := VSIPath("bucket", "/a/b.tif"); p != "/vsis3/bucket/a/b.tif" {
		t.Errorf("unexpected vsi path %s", p)
	}
}

func TestExtractPosixSymlinks(t *testing.T) {
	root := t.TempDir()
	data := t.TempDir()
	touch(t, filepath.Join(data, "sub/disp_20200101_20200113.tif"))
	touch(t, filepath.Join(root, "own/disp_20200101_20200125.tif"))
	if err := os.Symlink(filepath.Join(data, "sub"), filepath.Join(root, "linked")); err != nil {
		t.Skip("symlinks unsupported:", err)
	}

	files, err := ExtractPosix(root, 1, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("symlinks should be skipped by default, got %v", files)
	}

	files, err = ExtractPosix(root, 1, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || filepath.Base(filepath.Dir(files[0].FilePath)) != "linked" {
		t.Fatalf("expected the linked directory to be crawled, got %v", files)
	}
	if files[0].ID == files[1].ID || files[0].INode == 0 {
		t.Errorf("unexpected posix info %+v %+v", files[0], files[1])
	}

	if err := os.Symlink(filepath.Join(data, "missing"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}
	files, err = ExtractPosix(root, 2, "", true)
	if err == nil {
		t.Errorf("expected an error for the dangling symlink")
	}
	if len(files) != 2 {
		t.Errorf("dangling symlink should not hide other files, got %v", files)
	}
}
