// Package testutil provides source tree and repository fixtures for tests
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Fixture projects keyed by framework. Each one declares a small users API.
var projects = map[string]map[string]string{
	"express": {
		"package.json": `{"name": "users", "dependencies": {"express": "^4.18.2"}}`,
		"src/routes/users.js": `const router = require('express').Router();

// List users
router.get('/users', listUsers);

router.post('/users', authenticate, validate(userSchema), createUser);

router.get('/users/:id', getUser);

router.delete('/users/:id', authenticate, removeUser);

module.exports = router;
`,
	},
	"fastapi": {
		"requirements.txt": "fastapi==0.110.0\nuvicorn==0.29.0\n",
		"app/main.py": `from fastapi import FastAPI

app = FastAPI()


@app.get("/users")
async def list_users(limit: int = 10):
    return []


@app.get("/users/{user_id}")
async def get_user(user_id: int):
    return {"id": user_id}
`,
	},
	"spring": {
		"pom.xml": `<project><dependencies><dependency>
<groupId>org.springframework.boot</groupId>
<artifactId>spring-boot-starter-web</artifactId>
</dependency></dependencies></project>`,
		"src/main/java/com/acme/UserController.java": `package com.acme;

@RestController
@RequestMapping("/api/v1")
public class UserController {

    @GetMapping("/users/{id}")
    public User get(@PathVariable Long id) {
        return service.find(id);
    }
}
`,
	},
}

// Projects lists the fixture names
func Projects() []string {
	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project writes the named fixture project and returns its root
func Project(t testing.TB, name string) string {
	t.Helper()

	files, ok := projects[name]
	if !ok {
		t.Fatalf("unknown fixture project %q", name)
	}
	return WriteTree(t, files)
}

// WriteTree writes files, keyed by slash separated relative path, under a
// fresh temporary directory and returns it.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return root
}

// RequireGit skips the test when no git binary is installed. Cloning over
// the file transport runs git-upload-pack.
func RequireGit(t testing.TB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping clone test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("skipping test: git binary not found")
	}
}

// InitRepo commits files into a new repository and returns its path
func InitRepo(t testing.TB, files map[string]string) string {
	t.Helper()

	dir := WriteTree(t, files)
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to open worktree: %v", err)
	}
	for name := range files {
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("failed to stage %s: %v", name, err)
		}
	}
	_, err = wt.Commit("initial import", &git.CommitOptions{
		Author: &object.Signature{Name: "fixture", Email: "fixture@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return dir
}
