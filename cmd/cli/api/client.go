// Package api is the CLI's HTTP client for the Postfeed API.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/crucial707/postfeed/cmd/cli/config"
	"github.com/gabriel-vasile/mimetype"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.Status, e.Data)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Request is one API call. Body is sent as-is with ContentType.
type Request struct {
	Method      string
	Path        string
	Body        io.Reader
	ContentType string
	// Auth attaches the saved token.
	Auth bool
}

// Do sends req and decodes a 2xx JSON response into out (which may be nil).
func Do(req Request, out any) error {
	httpReq, err := http.NewRequest(req.Method, config.APIURL()+req.Path, req.Body)
	if err != nil {
		return err
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Auth {
		token, err := config.LoadToken()
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			apiErr.Message, apiErr.Data = payload.Message, payload.Data
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// JSON sends payload as a JSON body.
func JSON(method, path string, auth bool, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return Do(Request{
		Method:      method,
		Path:        path,
		Body:        bytes.NewReader(data),
		ContentType: "application/json",
		Auth:        auth,
	}, out)
}

// Multipart sends fields and, when imagePath is set, the file as the "image" part.
func Multipart(method, path string, fields map[string]string, imagePath string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if imagePath != "" {
		if err := writeImagePart(mw, imagePath); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return Do(Request{
		Method:      method,
		Path:        path,
		Body:        &buf,
		ContentType: mw.FormDataContentType(),
		Auth:        true,
	}, out)
}

func writeImagePart(mw *multipart.Writer, imagePath string) error {
	mtype, err := mimetype.DetectFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(imagePath)))
	h.Set("Content-Type", mtype.String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
