package repository

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catalogprj/internal/model"
)

func TestHTMLRepositoryFreshness(t *testing.T) {
	dir := t.TempDir()
	repo := &HTMLRepository{Dir: filepath.Join(dir, "html"), ScreenshotDir: filepath.Join(dir, "logs"), MinBytes: 100}

	if _, ok, err := repo.Fresh("L1"); ok || err != nil {
		t.Fatalf("missing entry: ok=%v err=%v", ok, err)
	}

	if _, err := repo.Save("L1", "<html>tiny</html>"); err != nil {
		t.Fatal(err)
	}
	if !repo.Exists("L1") {
		t.Fatal("Exists() = false after Save")
	}
	if _, ok, _ := repo.Fresh("L1"); ok {
		t.Fatal("snapshot below MinBytes must not be fresh")
	}

	big := "<html>" + strings.Repeat("x", 200) + "</html>"
	n, err := repo.Save("L1", big)
	if err != nil || n != int64(len(big)) {
		t.Fatalf("Save() = %d, %v", n, err)
	}
	got, ok, err := repo.Fresh("L1")
	if err != nil || !ok || got != big {
		t.Fatalf("Fresh() = %d bytes, %v, %v", len(got), ok, err)
	}

	name, err := repo.SaveScreenshot("L1", []byte{0x89, 'P', 'N', 'G'})
	if err != nil || name != "L1.png" || !repo.ScreenshotExists("L1") {
		t.Fatalf("SaveScreenshot() = %q, %v", name, err)
	}
}

func TestExtractionRepository(t *testing.T) {
	repo := &ExtractionRepository{Dir: filepath.Join(t.TempDir(), "groq_cache")}

	if _, ok, err := repo.Get("L1"); ok || err != nil {
		t.Fatalf("missing entry: ok=%v err=%v", ok, err)
	}

	ext := model.Extraction{"attributes__brand": "Acme & Sons <EU>", "attributes__ram": "16 GB"}
	if err := repo.Put("L1", ext); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(repo.Dir, "L1.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n  \"attributes__brand\": \"Acme & Sons <EU>\"") {
		t.Errorf("cache file not pretty-printed or HTML-escaped:\n%s", raw)
	}

	got, ok, err := repo.Get("L1")
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if got["attributes__ram"] != "16 GB" {
		t.Errorf("Get() = %v", got)
	}

	leftovers, _ := filepath.Glob(filepath.Join(repo.Dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestExtractionRepositoryCorrupt(t *testing.T) {
	repo := &ExtractionRepository{Dir: t.TempDir()}
	for sku, body := range map[string]string{"BAD": "{not json", "EMPTY": "{}"} {
		if err := os.WriteFile(filepath.Join(repo.Dir, sku+".json"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, ok, err := repo.Get(sku); ok || !errors.Is(err, ErrCorruptEntry) {
			t.Errorf("Get(%s) ok=%v err=%v, want ErrCorruptEntry", sku, ok, err)
		}
	}
}

func TestSKUPathsStayInsideDirs(t *testing.T) {
	root := t.TempDir()
	html := &HTMLRepository{Dir: filepath.Join(root, "html"), ScreenshotDir: filepath.Join(root, "logs")}
	cache := &ExtractionRepository{Dir: filepath.Join(root, "cache")}

	for _, sku := range []string{"../escape", "a/b", `c\d`, ".."} {
		if _, err := html.Save(sku, "<html></html>"); err != nil {
			t.Errorf("Save(%q) = %v", sku, err)
		}
		if _, err := html.SaveScreenshot(sku, []byte("png")); err != nil {
			t.Errorf("SaveScreenshot(%q) = %v", sku, err)
		}
		if err := cache.Put(sku, model.Extraction{"sku": sku}); err != nil {
			t.Errorf("Put(%q) = %v", sku, err)
		}
		if got, ok, err := cache.Get(sku); !ok || err != nil || got["sku"] != sku {
			t.Errorf("Get(%q) = %v, %v, %v", sku, got, ok, err)
		}
		if !html.Exists(sku) {
			t.Errorf("Exists(%q) = false", sku)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if n := e.Name(); n != "html" && n != "logs" && n != "cache" {
			t.Errorf("unexpected entry %q in cache root", n)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "escape.html")); err == nil {
		t.Error("snapshot written outside its directory")
	}
}
