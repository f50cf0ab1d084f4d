// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
)

// SampleHosts is a typical hosts file with comments and a CRLF line.
const SampleHosts = "# static table lookup for hostnames\n" +
	"127.0.0.1\tlocalhost\n" +
	"::1\tlocalhost ip6-localhost\r\n" +
	"192.168.1.10 nas.lan # home server\n"

// FakeHostsFile is a hosts file and data directory under a temp root.
type FakeHostsFile struct {
	Root    string
	Path    string
	DataDir string
}

// NewFakeHostsFile writes content to <root>/etc/hosts.
func NewFakeHostsFile(root, content string) (*FakeHostsFile, error) {
	f := &FakeHostsFile{
		Root:    root,
		Path:    filepath.Join(root, "etc", "hosts"),
		DataDir: filepath.Join(root, "data"),
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.DataDir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(f.Path, []byte(content), 0644); err != nil {
		return nil, err
	}
	return f, nil
}

// Read returns the current hosts file content.
func (f *FakeHostsFile) Read() string {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return ""
	}
	return string(data)
}
