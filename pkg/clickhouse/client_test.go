package clickhouse

import (
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	cfg := &ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "pulsescan",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  time.Minute,
		AsyncInsert:  true,
		WaitForAsync: true,
	}

	u, err := url.Parse(buildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.local:9000" || u.Path != "/pulsescan" {
		t.Fatalf("unexpected dsn %s", u)
	}
	if pw, _ := u.User.Password(); pw != "p@ss" {
		t.Fatalf("password not preserved: %q", pw)
	}
	q := u.Query()
	if q.Get("dial_timeout") != "5s" || q.Get("max_execution_time") != "60" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("async flags missing: %v", q)
	}
	if q.Has("read_timeout") {
		t.Fatalf("zero read timeout should be omitted")
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	u, err := url.Parse(buildDSN(&ClientConfig{Host: "h", Port: 8123, Database: "d", UseHTTP: true}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %s", u.Scheme)
	}
}
