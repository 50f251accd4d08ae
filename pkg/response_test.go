package pkg

import (
	"fmt"
	"testing"
)

func TestFailCarriesDomainErrorText(t *testing.T) {
	err := fmt.Errorf("%w: channel abc", ErrNotFound)
	res := Fail(err)
	if res["success"] != false {
		t.Fatalf("success = %v", res["success"])
	}
	if res["error"] != "not found: channel abc" {
		t.Fatalf("error = %v", res["error"])
	}
}

func TestShortMessageFlattensUnknownErrors(t *testing.T) {
	if got := ShortMessage(fmt.Errorf("dial tcp 10.0.0.1: connection refused")); got != "internal error" {
		t.Fatalf("unknown error leaked: %q", got)
	}
	if got := ShortMessage(fmt.Errorf("%w: sqlite disk I/O", ErrBackend)); got != "backend failure" {
		t.Fatalf("backend detail leaked: %q", got)
	}
}

func TestResultWithMergesFields(t *testing.T) {
	res := OK().With("serverId", "srv").With("count", 3)
	if res["success"] != true || res["serverId"] != "srv" || res["count"] != 3 {
		t.Fatalf("result = %v", res)
	}
}
