package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"github.com/ignite/eventpass/internal/pkg/httpretry"
)

// DefaultDriveUploadURL is the Drive v3 upload endpoint.
const DefaultDriveUploadURL = "https://www.googleapis.com/upload/drive/v3"

// DrivePublisher uploads assets into Google Drive folders.
type DrivePublisher struct {
	http    httpretry.HTTPDoer
	baseURL string
}

// NewDrivePublisher creates a publisher. doer must attach Drive credentials.
func NewDrivePublisher(doer httpretry.HTTPDoer, baseURL string) *DrivePublisher {
	if baseURL == "" {
		baseURL = DefaultDriveUploadURL
	}
	return &DrivePublisher{http: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

type driveFile struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}

// Upload creates filename inside the folder with id folder and returns the
// new file id.
func (p *DrivePublisher) Upload(ctx context.Context, localPath, folder, filename string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", localPath, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	meta := driveFile{Name: filename, MimeType: contentType(filename)}
	if folder != "" {
		meta.Parents = []string{folder}
	}
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return "", err
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return "", err
	}
	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {meta.MimeType}})
	if err != nil {
		return "", err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/files?uploadType=multipart&fields=id", bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s to drive: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload %s to drive: status %d: %s", filename, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var created driveFile
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode drive response: %w", err)
	}
	return created.ID, nil
}
