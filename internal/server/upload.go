package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

type documentInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	Modified  time.Time `json:"modified"`
}

func (s *Server) upload(c echo.Context) error {
	req := c.Request()
	if s.cfg.MaxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.MaxUploadBytes+multipartSlack)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return s.rejectTooLarge(c)
		}
		s.metrics.Upload("rejected")
		return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "No file provided"})
	}

	name := filepath.Base(strings.ReplaceAll(fh.Filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		s.metrics.Upload("rejected")
		return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "No file selected"})
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := s.allowed[ext]; !ok {
		s.metrics.Upload("rejected")
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("File type not allowed: %q. Allowed: %s", ext, strings.Join(s.cfg.Extensions, ", ")),
		})
	}
	if s.cfg.MaxUploadBytes > 0 && fh.Size > s.cfg.MaxUploadBytes {
		return s.rejectTooLarge(c)
	}

	path, size, err := s.store(fh, name)
	if err != nil {
		s.metrics.Upload("error")
		s.log.Error("storing upload", zap.String("filename", name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "filename": name, "error": "Could not store file"})
	}
	stored := filepath.Base(path)
	s.log.Info("upload stored", zap.String("path", path), zap.Int64("size", size))

	report, err := s.ingester.Ingest(req.Context())
	if err != nil {
		s.metrics.Upload("error")
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success":  false,
			"filename": stored,
			"error":    "File saved but indexing failed: " + err.Error(),
		})
	}
	s.metrics.Upload("ok")
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"filename":   stored,
		"size":       size,
		"size_human": humanSize(size),
		"chunks":     report.Chunks,
		"message":    fmt.Sprintf("Uploaded %s and indexed %d documents (%d chunks)", stored, report.Documents, report.Chunks),
	})
}

func (s *Server) rejectTooLarge(c echo.Context) error {
	s.metrics.Upload("too_large")
	return c.JSON(http.StatusRequestEntityTooLarge, map[string]any{
		"success": false,
		"error":   "File too large. Maximum size is " + humanSize(s.cfg.MaxUploadBytes),
	})
}

// store copies the upload into the upload dir under a name no existing file
// uses, returning the final path and the bytes written.
func (s *Server) store(fh *multipart.FileHeader, name string) (string, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", 0, err
	}
	dst, path, err := createUnique(s.cfg.UploadDir, name)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

// createUnique opens name in dir, falling back to name_1.ext, name_2.ext and
// so on while the candidate exists.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

func (s *Server) documents(c echo.Context) error {
	docs := s.ingester.Documents()
	out := make([]documentInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentInfo{
			Name:      d.Name,
			Path:      d.Path,
			Size:      d.Size,
			SizeHuman: humanSize(d.Size),
			Modified:  d.ModTime,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func humanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
