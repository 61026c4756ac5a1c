package handler

import (
	"io"
	"os"
	"path/filepath"

	"family-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// saveUpload stores the multipart "image" form field under dir and returns
// the stored path relative to the uploads route. An absent file field is not
// an error: it returns "".
func saveUpload(c echo.Context, dir string) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		// No file in the form.
		return "", nil
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.New().String() + filepath.Ext(file.Filename)
	dstPath := filepath.Join(dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}

	logger.FromContext(c).Info("Stored uploaded image",
		zap.String("file", name),
		zap.Int64("size", file.Size))

	return "/uploads/" + name, nil
}

// imageOrDefault resolves the stored image reference for a create request:
// an uploaded file wins, then an explicit URL from the request body, then the
// configured placeholder.
func imageOrDefault(uploaded, fromBody, placeholder string) string {
	if uploaded != "" {
		return uploaded
	}
	if fromBody != "" {
		return fromBody
	}
	return placeholder
}
