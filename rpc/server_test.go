package rpc_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/seloria/seloria/rpc"
)

func TestServeRPCDispatchesJSONRPCRequestsOverHTTP(t *testing.T) {
	h, _, _ := newTestHandler(t)
	srv := rpc.NewServer("127.0.0.1:0", h, nil, nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	body, err := json.Marshal(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "getStatus"})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	url := fmt.Sprintf("http://%s/", srv.Addr().String())
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded rpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Error != nil {
		t.Fatalf("getStatus over HTTP error: %+v", decoded.Error)
	}
}

func TestServeRPCRejectsWrongJSONRPCVersion(t *testing.T) {
	h, _, _ := newTestHandler(t)
	srv := rpc.NewServer("127.0.0.1:0", h, nil, nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	body, err := json.Marshal(rpc.Request{JSONRPC: "1.0", ID: 1, Method: "getStatus"})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	url := fmt.Sprintf("http://%s/", srv.Addr().String())
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded rpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != rpc.CodeInvalidRequest {
		t.Fatalf("resp.Error = %+v, want CodeInvalidRequest", decoded.Error)
	}
}

func TestServeRPCRejectsNonPostMethod(t *testing.T) {
	h, _, _ := newTestHandler(t)
	srv := rpc.NewServer("127.0.0.1:0", h, nil, nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	url := fmt.Sprintf("http://%s/", srv.Addr().String())
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
