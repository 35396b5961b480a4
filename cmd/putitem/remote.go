package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ddbstream/api/httpapi"
	"ddbstream/domain/changelog"
)

// remoteWriter posts items to a server's item API.
type remoteWriter struct {
	url    string
	client *http.Client
}

func newRemoteWriter(base string) *remoteWriter {
	return &remoteWriter{
		url:    strings.TrimRight(base, "/") + httpapi.ItemsPath,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *remoteWriter) PutItem(ctx context.Context, item changelog.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return changelog.Parse("encode item", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return changelog.Connectivity("post item", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("post item: %s: %s", resp.Status, e.Error)
	}
	return nil
}
