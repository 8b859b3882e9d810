package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newCommand(&out).Run(context.Background(), []string{"nntpcat", "version"}))
	assert.Equal(t, Version+"\n", out.String())
}

func TestCmdCommand(t *testing.T) {
	ck := assert.New(t)
	host, port := startServer(t)

	var out bytes.Buffer
	err := newCommand(&out).Run(context.Background(), []string{
		"nntpcat", "cmd", "--host", host, "--port", port, "DATE", "GROUP alt.test",
	})
	ck.NoError(err)
	ck.Equal("111 20240101120000\n211 1 1 1 alt.test\n", out.String())
}

func TestCmdCommandErrors(t *testing.T) {
	ck := assert.New(t)
	host, port := startServer(t)

	var out bytes.Buffer
	ck.Error(newCommand(&out).Run(context.Background(), []string{"nntpcat", "cmd", "--host", host, "--port", port}),
		"no commands")
	ck.Error(newCommand(&out).Run(context.Background(), []string{"nntpcat", "cmd", "--port", port, "DATE"}),
		"missing host")
	ck.Error(newCommand(&out).Run(context.Background(), []string{"nntpcat", "cmd", "--host", host, "--port", "563", "DATE"}),
		"TLS port without --ssl")
	ck.Empty(out.String())
}

func TestGreetCommand(t *testing.T) {
	host, port := startServer(t)

	var out bytes.Buffer
	err := newCommand(&out).Run(context.Background(), []string{"nntpcat", "greet", "--host", host, "--port", port})
	require.NoError(t, err)
	assert.Equal(t, "200 test server ready\nVERSION 2\nREADER\n", out.String())
}
