package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
)

type ApiResponse struct {
	TraceID string                 `json:"traceId"`
	Data    map[string]interface{} `json:"data"`
}

type ListResponse struct {
	TraceID string                   `json:"traceId"`
	Data    []map[string]interface{} `json:"data"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func PostRequest(t *testing.T, url string, payload interface{}) (*http.Response, error) {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if req.Header.Get(pkg.HeaderTraceId) == "" {
		req.Header.Set(pkg.HeaderTraceId, uuid.New().String())
	}
	client := &http.Client{}
	t.Logf("Request POST %s", url)
	resp, err := client.Do(req)
	if resp != nil {
		t.Logf("Response POST %s: Status %d", url, resp.StatusCode)
	}
	t.Cleanup(func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	})
	return resp, err
}

func GetRequest(t *testing.T, url string) (*http.Response, error) {
	t.Logf("Request GET %s", url)
	resp, err := http.Get(url)
	if resp != nil {
		t.Logf("Response GET %s: Status %d", url, resp.StatusCode)
	}
	t.Cleanup(func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	})
	return resp, err
}

func GetTraceId(resp *http.Response) string {
	return resp.Header.Get(pkg.HeaderTraceId)
}

func DecodeSuccess(r io.Reader) (ApiResponse, error) {
	var out ApiResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeList(r io.Reader) (ListResponse, error) {
	var out ListResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func DecodeError(r io.Reader) (ErrorResponse, error) {
	var out ErrorResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
