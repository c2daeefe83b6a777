package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-c", "x.yml", "-p", "9191", "-vv"}))

	c, _ := cmd.Flags().GetString("config")
	p, _ := cmd.Flags().GetInt("port")
	v, _ := cmd.Flags().GetCount("verbose")
	require.Equal(t, "x.yml", c)
	require.Equal(t, 9191, p)
	require.Equal(t, 2, v)
}

func TestRootCmd_MissingConfigFails(t *testing.T) {
	t.Setenv("LOG_DIR", t.TempDir())

	cmd := newRootCmd()
	cmd.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.yml")})
	cmd.SetOut(&bytes.Buffer{})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	t.Setenv("LOG_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "probevisor.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  both: {url: "http://x", test: "true", every: 1s, expect: {status: 0}}
`), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"-c", path})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("SHELL", "sh")
	path := filepath.Join(t.TempDir(), "probevisor.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  shell: {test: "exit 0", every: 1s, expect: {status: 0}}
`), 0o600))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = run(ctx, options{configFile: path, port: port}, true)
	require.NoError(t, err)
}

func TestRun_InvalidPort(t *testing.T) {
	require.Error(t, run(context.Background(), options{port: 70000}, true))
}
