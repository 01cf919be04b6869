package docs_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// TestMkDocsConfig verifies mkdocs.yml is present and carries the site
// structure and theme the published docs depend on.
func TestMkDocsConfig(t *testing.T) {
	root := findRepoRoot(t)
	data, err := os.ReadFile(filepath.Join(root, "mkdocs.yml"))
	if err != nil {
		t.Fatalf("mkdocs.yml not found: %v", err)
	}

	content := string(data)
	for _, key := range []string{"site_name:", "theme:", "nav:", "plugins:"} {
		if !strings.Contains(content, key) {
			t.Errorf("mkdocs.yml missing required key: %s", key)
		}
	}

	checks := map[string]string{
		"material theme":  "name: material",
		"search plugin":   "- search",
		"navigation tabs": "navigation.tabs",
		"code copy":       "content.code.copy",
		"mermaid support": "mermaid",
		"site URL":        "lvcoi.github.io/shorts-collector",
		"repo URL":        "github.com/lvcoi/shorts-collector",
	}
	for desc, expected := range checks {
		if !strings.Contains(content, expected) {
			t.Errorf("mkdocs.yml missing %s (expected %q)", desc, expected)
		}
	}

	for _, section := range []string{"Home:", "User Guide:", "Developer Guide:", "Reference:"} {
		if !strings.Contains(content, section) {
			t.Errorf("mkdocs.yml nav missing section: %s", section)
		}
	}
}

// TestNavPagesExist verifies every .md page referenced in the nav exists
// on disk.
func TestNavPagesExist(t *testing.T) {
	root := findRepoRoot(t)
	pages := extractNavPagesFromFile(t, filepath.Join(root, "mkdocs.yml"))

	if len(pages) == 0 {
		t.Fatal("no pages found in mkdocs.yml nav")
	}

	docsDir := filepath.Join(root, "docs")
	for _, page := range pages {
		if _, err := os.Stat(filepath.Join(docsDir, page)); os.IsNotExist(err) {
			t.Errorf("page referenced in nav but missing on disk: docs/%s", page)
		}
	}
}

// TestNoOrphanedPages checks that every markdown file in the guide
// subdirectories is reachable from the nav.
func TestNoOrphanedPages(t *testing.T) {
	root := findRepoRoot(t)
	navPages := make(map[string]bool)
	for _, page := range extractNavPagesFromFile(t, filepath.Join(root, "mkdocs.yml")) {
		navPages[page] = true
	}

	docsDir := filepath.Join(root, "docs")
	for _, dir := range []string{"user-guide", "developer-guide", "reference"} {
		entries, err := os.ReadDir(filepath.Join(docsDir, dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			relPath := filepath.Join(dir, entry.Name())
			if !navPages[relPath] {
				t.Errorf("docs/%s exists but is not referenced in mkdocs.yml nav", relPath)
			}
		}
	}
}

// TestIndexPageHasLinks verifies the home page links to the entry points
// of each section.
func TestIndexPageHasLinks(t *testing.T) {
	root := findRepoRoot(t)
	data, err := os.ReadFile(filepath.Join(root, "docs", "index.md"))
	if err != nil {
		t.Fatalf("docs/index.md not found: %v", err)
	}

	content := string(data)
	requiredLinks := []string{
		"user-guide/installation.md",
		"user-guide/quick-start.md",
		"developer-guide/architecture.md",
		"reference/cli-options.md",
	}
	for _, link := range requiredLinks {
		if !strings.Contains(content, link) {
			t.Errorf("docs/index.md missing link to: %s", link)
		}
	}
}

// TestDocsWorkflowExists verifies the GitHub Actions workflow that
// publishes the site.
func TestDocsWorkflowExists(t *testing.T) {
	root := findRepoRoot(t)
	data, err := os.ReadFile(filepath.Join(root, ".github", "workflows", "docs.yml"))
	if err != nil {
		t.Fatalf(".github/workflows/docs.yml not found: %v", err)
	}

	content := string(data)
	for _, s := range []string{
		"mkdocs",
		"gh-deploy",
		"requirements-docs.txt",
		"actions/checkout",
		"actions/setup-python",
	} {
		if !strings.Contains(content, s) {
			t.Errorf("docs workflow missing expected content: %q", s)
		}
	}
}

// TestRequirementsDocsExists verifies the Python requirements file the
// workflow installs from.
func TestRequirementsDocsExists(t *testing.T) {
	root := findRepoRoot(t)
	data, err := os.ReadFile(filepath.Join(root, "requirements-docs.txt"))
	if err != nil {
		t.Fatalf("requirements-docs.txt not found: %v", err)
	}

	if !strings.Contains(string(data), "mkdocs-material") {
		t.Error("requirements-docs.txt missing mkdocs-material dependency")
	}
}

// extractNavPagesFromFile extracts all .md file paths from mkdocs.yml nav using regex.
func extractNavPagesFromFile(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read %s: %v", path, err)
	}

	// Match patterns like "  - Something: path/to/file.md" in the nav section
	re := regexp.MustCompile(`:\s+([a-zA-Z0-9_\-/]+\.md)\s*$`)
	var pages []string
	inNav := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "nav:" {
			inNav = true
			continue
		}
		// End of nav section: a top-level key that isn't indented
		if inNav && len(line) > 0 && line[0] != ' ' && line[0] != '-' {
			break
		}
		if inNav {
			matches := re.FindStringSubmatch(line)
			if len(matches) > 1 {
				pages = append(pages, matches[1])
			}
		}
	}
	return pages
}

// findRepoRoot walks up from the test file to find the repository root (contains go.mod).
func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("cannot get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repository root (no go.mod found)")
		}
		dir = parent
	}
}
