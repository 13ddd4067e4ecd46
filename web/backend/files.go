package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/antarex-ai/dashboard/web/access"
)

// MaxUploadFiles is the largest batch the API accepts in one upload.
const MaxUploadFiles = 10

// UploadFile is one PDF of an upload batch.
type UploadFile struct {
	Name    string
	Content io.Reader
}

type UploadResult struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// Blob is a file streamed from the API. The caller must close Body.
type Blob struct {
	Name          string
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// checkFilename rejects names that could address anything other than a
// single stored alert.
func checkFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return validationError("filename", "file name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return validationError("filename", fmt.Sprintf("%q is not a valid file name", name))
	}
	return nil
}

// ValidateUpload checks a batch before anything is sent.
func ValidateUpload(files []UploadFile) error {
	if len(files) == 0 {
		return validationError("files", "select at least one PDF")
	}
	if len(files) > MaxUploadFiles {
		return validationError("files", fmt.Sprintf("at most %d files can be uploaded at once", MaxUploadFiles))
	}
	for _, f := range files {
		if err := checkFilename(f.Name); err != nil {
			return err
		}
		if !strings.EqualFold(path.Ext(f.Name), ".pdf") {
			return validationError("files", fmt.Sprintf("%s is not a PDF", f.Name))
		}
		if f.Content == nil {
			return validationError("files", fmt.Sprintf("%s has no content", f.Name))
		}
	}
	return nil
}

// Upload sends a batch of PDFs as one multipart request. The API skips files
// it already has and fails the request when nothing new was uploaded.
func (a *Adapter) Upload(ctx context.Context, files []UploadFile) (UploadResult, error) {
	if err := ValidateUpload(files); err != nil {
		return UploadResult{}, err
	}
	if err := a.authorize(access.UploadAlerts, "uploading alerts"); err != nil {
		return UploadResult{}, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for _, f := range files {
			part, err := mw.CreateFormFile("files", f.Name)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	var out UploadResult
	err := a.doJSON(ctx, request{
		endpoint:    "upload",
		method:      http.MethodPost,
		path:        "/upload",
		stream:      pr,
		contentType: mw.FormDataContentType(),
	}, &out)
	// Unblocks the writer when the request ended before reading everything.
	_ = pr.Close()
	if err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

// Download streams one stored alert PDF.
func (a *Adapter) Download(ctx context.Context, filename string) (*Blob, error) {
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	if err := a.authorize(access.DownloadAlert, "downloading alerts"); err != nil {
		return nil, err
	}
	return a.blob(ctx, request{
		endpoint: "download",
		method:   http.MethodGet,
		path:     "/download/" + url.PathEscape(filename),
	}, filename)
}

// ExportCSV streams the API's CSV export of all alerts.
func (a *Adapter) ExportCSV(ctx context.Context) (*Blob, error) {
	if err := a.authorize(access.ExportAlerts, "exporting alerts"); err != nil {
		return nil, err
	}
	return a.blob(ctx, request{endpoint: "export.csv", method: http.MethodGet, path: "/export/csv"}, "alerts_export.csv")
}

func (a *Adapter) blob(ctx context.Context, r request, fallbackName string) (*Blob, error) {
	resp, err := a.do(ctx, r)
	if err != nil {
		return nil, err
	}
	name := fallbackName
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if fn := path.Base(params["filename"]); fn != "" && fn != "." && fn != "/" {
			name = fn
		}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Blob{Name: name, ContentType: ct, ContentLength: resp.ContentLength, Body: resp.Body}, nil
}
