package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestExtractAddr(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgresql://user:pw@dbhost:5433/lv", "dbhost:5433"},
		{"postgresql://user:pw@dbhost/lv", "dbhost:5432"},
		{"postgres://dbhost/lv?sslmode=disable", "dbhost:5432"},
		{"nats://broker", "broker:4222"},
		{"nats://user@broker:5222", "broker:5222"},
		{"http://telemetry.b4mad.racing:30050/graphql", "telemetry.b4mad.racing:30050"},
		{"https://paddock.example.com/graphql", "paddock.example.com:443"},
		{"ftp://files", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, ExtractAddr(tt.url), tt.want)
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	assert.NilError(t, WaitForTCP(context.Background(), l.Addr().String(), time.Second))

	addr := l.Addr().String()
	l.Close()
	err = WaitForTCP(context.Background(), addr, 300*time.Millisecond)
	assert.ErrorContains(t, err, "could not be reached")
}
