package lms

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/go-pkgz/lgr"
)

// File is an uploaded course file with its download URL.
type File struct {
	ID   int64  `json:"id"`
	Name string `json:"display_name"`
	URL  string `json:"url"`
}

// UploadFile pushes a local file into the course files area using the LMS
// three-step flow: request an upload slot, POST the content as multipart to
// the returned URL, then confirm by following the returned location.
func (c *Client) UploadFile(ctx context.Context, courseID int64, path, folder string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("can't stat upload file %s: %w", path, err)
	}

	// step 1: request an upload slot
	slotURL := fmt.Sprintf("%s/courses/%d/files", c.BaseURL, courseID)
	slotReq := struct {
		Name             string `json:"name"`
		Size             int64  `json:"size"`
		ContentType      string `json:"content_type"`
		ParentFolderPath string `json:"parent_folder_path,omitempty"`
		OnDuplicate      string `json:"on_duplicate"`
	}{Name: filepath.Base(path), Size: st.Size(), ContentType: "application/zip",
		ParentFolderPath: folder, OnDuplicate: "overwrite"}

	var slot struct {
		UploadURL    string            `json:"upload_url"`
		UploadParams map[string]string `json:"upload_params"`
	}
	if _, err := c.do(ctx, http.MethodPost, slotURL, slotReq, &slot); err != nil {
		return File{}, fmt.Errorf("can't request upload slot for %s: %w", path, err)
	}
	if slot.UploadURL == "" {
		return File{}, fmt.Errorf("upload slot for %s has no upload_url", path)
	}

	// step 2: multipart POST of the actual content
	res, err := c.postMultipart(ctx, slot.UploadURL, slot.UploadParams, path)
	if err != nil {
		return File{}, err
	}

	// step 3: confirm. 2xx carries the file JSON directly, 3xx requires an
	// authenticated GET of the location.
	if res.location != "" {
		var file File
		if _, err := c.do(ctx, http.MethodGet, res.location, nil, &file); err != nil {
			return File{}, fmt.Errorf("can't confirm upload of %s: %w", path, err)
		}
		log.Printf("[INFO] uploaded %s as file %d", path, file.ID)
		return file, nil
	}
	log.Printf("[INFO] uploaded %s as file %d", path, res.file.ID)
	return res.file, nil
}

type uploadResult struct {
	file     File
	location string
}

// postMultipart sends the upload form. Upload params go first, the file part
// has to be last per the LMS upload contract.
func (c *Client) postMultipart(ctx context.Context, url string, params map[string]string, path string) (uploadResult, error) {
	fh, err := os.Open(path) // nolint gosec // upload path derived from the manifest
	if err != nil {
		return uploadResult{}, fmt.Errorf("can't open %s: %w", path, err)
	}
	defer fh.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for k, v := range params {
			if err := mw.WriteField(k, v); err != nil {
				_ = pw.CloseWithError(fmt.Errorf("can't write form field %s: %w", k, err))
				return
			}
		}
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(fmt.Errorf("can't make file part: %w", err))
			return
		}
		if _, err := io.Copy(part, fh); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("can't copy file content: %w", err))
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return uploadResult{}, fmt.Errorf("can't make upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// redirects handled manually, the auth header has to be re-attached on step 3
	client := *c.Client
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	res, err := client.Do(req)
	if err != nil {
		return uploadResult{}, fmt.Errorf("upload POST to %s failed: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusMultipleChoices && res.StatusCode < http.StatusBadRequest {
		return uploadResult{location: res.Header.Get("Location")}, nil
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return uploadResult{}, &APIError{Status: res.StatusCode, Body: bodyExcerpt(res)}
	}

	result := uploadResult{}
	if err := decodeJSON(res.Body, &result.file); err != nil {
		return uploadResult{}, fmt.Errorf("can't decode upload response: %w", err)
	}
	return result, nil
}
